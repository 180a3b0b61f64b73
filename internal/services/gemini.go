// Gemini API implementation of [TempoOracle]
//
// Request/response shapes based on https://ai.google.dev/api/generate-content
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Tier is one configuration in the oracle fallback chain. Tiers are tried in
// order; each escalation buys a larger token budget and a slightly less
// deterministic sample at the cost of latency.
type Tier struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultTiers returns the standard three-tier fallback chain.
func DefaultTiers() []Tier {
	return []Tier{
		{Model: "gemini-2.5-flash-lite", MaxTokens: 256, Temperature: 0.1, Timeout: 20 * time.Second},
		{Model: "gemini-2.5-flash", MaxTokens: 512, Temperature: 0.3, Timeout: 30 * time.Second},
		{Model: "gemini-2.5-pro", MaxTokens: 1024, Temperature: 0.4, Timeout: 45 * time.Second},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiTool struct {
	GoogleSearch struct{} `json:"google_search"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	Tools            []geminiTool           `json:"tools"`
}

type geminiWebSource struct {
	URI   string `json:"uri"`
	Title string `json:"title"`
}

type geminiGroundingChunk struct {
	Web geminiWebSource `json:"web"`
}

type geminiGroundingMetadata struct {
	GroundingChunks []geminiGroundingChunk `json:"groundingChunks"`
}

type geminiCandidate struct {
	Content           geminiContent            `json:"content"`
	GroundingMetadata *geminiGroundingMetadata `json:"groundingMetadata"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

// GeminiService implements [TempoOracle] with a three-tier fallback chain of
// search-grounded generateContent calls.
type GeminiService struct {
	apiKey     string
	httpClient *http.Client
	logger     *log.Logger
	baseURL    string
	tiers      []Tier
	observer   TierObserver
}

// GeminiOpts contains configuration for creating a GeminiService.
type GeminiOpts struct {
	Config     shared.GeminiConfig
	HTTPClient *http.Client
	Logger     *log.Logger
	Tiers      []Tier       // defaults to [DefaultTiers]
	Observer   TierObserver // optional per-tier diagnostics sink
}

// NewGeminiService creates a new Gemini tempo oracle.
func NewGeminiService(opts GeminiOpts) (*GeminiService, error) {
	if opts.Config.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api_key is not set", shared.ErrMissingCredentials)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if len(opts.Tiers) == 0 {
		opts.Tiers = DefaultTiers()
	}

	return &GeminiService{
		apiKey:     opts.Config.APIKey,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		baseURL:    geminiBaseURL,
		tiers:      opts.Tiers,
		observer:   opts.Observer,
	}, nil
}

func (g *GeminiService) Name() string {
	return "Gemini"
}

// bpmPattern matches the first decimal-looking substring in free text.
var bpmPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// extractBPM performs best-effort numeric extraction from the oracle's free
// text: first decimal substring, falling back to parsing the whole trimmed
// string.
func extractBPM(text string) (float64, bool) {
	if m := bpmPattern.FindString(text); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v, true
		}
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
		return v, true
	}
	return 0, false
}

func tempoPrompt(track models.Track) string {
	return fmt.Sprintf(
		"What is the tempo in BPM of the song %q by %s? Reply with only the numeric BPM value.",
		track.Title, track.Artist,
	)
}

// generate issues one generateContent call for a single tier and returns the
// reply text plus grounding citations.
func (g *GeminiService) generate(ctx context.Context, tier Tier, prompt string) (string, []models.Citation, error) {
	tierCtx, cancel := context.WithTimeout(ctx, tier.Timeout)
	defer cancel()

	reqBody := geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     tier.Temperature,
			MaxOutputTokens: tier.MaxTokens,
		},
		Tools: []geminiTool{{}},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, tier.Model)
	req, err := http.NewRequestWithContext(tierCtx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, fmt.Errorf("%w: status %d from %s", shared.ErrAPIRequest, resp.StatusCode, tier.Model)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(parsed.Candidates) == 0 {
		return "", nil, fmt.Errorf("%w: empty candidate list from %s", shared.ErrAPIRequest, tier.Model)
	}

	candidate := parsed.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	var citations []models.Citation
	if candidate.GroundingMetadata != nil {
		for _, chunk := range candidate.GroundingMetadata.GroundingChunks {
			citations = append(citations, models.Citation{URI: chunk.Web.URI, Title: chunk.Web.Title})
		}
	}

	return text.String(), citations, nil
}

func (g *GeminiService) observe(event TierEvent) {
	if g.observer != nil {
		g.observer.ObserveTier(event)
	}
}

// EstimateTempo resolves a track's BPM through the tier chain.
//
// A tier succeeds when its reply parses to a value strictly inside (0, 300);
// anything else — transport fault, empty text, unparseable or out-of-range
// value — escalates to the next tier. Exhausting the chain returns an absent
// estimate (Tier == 0) with a nil error. The only error returned is the
// context's, checked before each tier starts and again after its call
// returns, so a cancelled scan is distinguishable from oracle exhaustion.
func (g *GeminiService) EstimateTempo(ctx context.Context, track models.Track) (*models.TempoEstimate, error) {
	prompt := tempoPrompt(track)
	var lastRaw string

	for i, tier := range g.tiers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, citations, err := g.generate(ctx, tier, prompt)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		tierNum := i + 1
		if err != nil {
			g.logger.Debug("oracle tier failed", "tier", tierNum, "model", tier.Model, "track", track.Key(), "error", err)
			g.observe(TierEvent{TrackKey: track.Key(), Tier: tierNum, Model: tier.Model, Err: err})
			continue
		}

		lastRaw = raw
		bpm, parsed := extractBPM(raw)
		g.observe(TierEvent{
			TrackKey:  track.Key(),
			Tier:      tierNum,
			Model:     tier.Model,
			Raw:       raw,
			BPM:       bpm,
			Citations: len(citations),
		})

		if parsed && models.ValidBPM(bpm) {
			g.logger.Debug("oracle resolved tempo",
				"tier", tierNum, "model", tier.Model, "track", track.Key(), "bpm", bpm, "citations", len(citations))
			return &models.TempoEstimate{
				BPM:       bpm,
				Tier:      tierNum,
				Citations: citations,
				Raw:       raw,
			}, nil
		}

		g.logger.Debug("oracle tier returned unusable value",
			"tier", tierNum, "model", tier.Model, "track", track.Key(), "raw", raw)
	}

	// Every tier failed; the track is excluded from the selection but the
	// failure stays observable.
	return &models.TempoEstimate{Tier: 0, Raw: lastRaw}, nil
}
