package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
)

func testTiers() []Tier {
	return []Tier{
		{Model: "tier-one", MaxTokens: 256, Temperature: 0.1, Timeout: time.Second},
		{Model: "tier-two", MaxTokens: 512, Temperature: 0.3, Timeout: time.Second},
		{Model: "tier-three", MaxTokens: 1024, Temperature: 0.4, Timeout: time.Second},
	}
}

func geminiReply(text string) *http.Response {
	body := fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":%q}]}}]}`, text)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

func geminiGroundedReply(text string) *http.Response {
	body := fmt.Sprintf(`{
		"candidates": [{
			"content": {"parts": [{"text": %q}]},
			"groundingMetadata": {"groundingChunks": [
				{"web": {"uri": "https://example.com/a", "title": "Source A"}},
				{"web": {"uri": "https://example.com/b", "title": "Source B"}}
			]}
		}]
	}`, text)
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}
}

// scriptedOracle builds a GeminiService whose HTTP layer replies per model
// name, in tier order.
func scriptedOracle(t *testing.T, observer TierObserver, replies map[string]func(*http.Request) (*http.Response, error)) *GeminiService {
	t.Helper()
	client := &http.Client{Transport: tu.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		for model, fn := range replies {
			if strings.Contains(req.URL.Path, model) {
				return fn(req)
			}
		}
		t.Errorf("unexpected request to %s", req.URL.Path)
		return nil, errors.New("unscripted request")
	})}

	svc, err := NewGeminiService(GeminiOpts{
		Config:     shared.GeminiConfig{APIKey: "test-key"},
		HTTPClient: client,
		Tiers:      testTiers(),
		Observer:   observer,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return svc
}

// eventSink collects TierEvents across goroutines.
type eventSink struct {
	mu     sync.Mutex
	events []TierEvent
}

func (s *eventSink) ObserveTier(event TierEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *eventSink) all() []TierEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]TierEvent{}, s.events...)
}

func TestGeminiService(t *testing.T) {
	track := tu.NewTrack("t1", "Song", "Artist", 3*time.Minute)

	t.Run("NewGeminiService requires an API key", func(t *testing.T) {
		_, err := NewGeminiService(GeminiOpts{})
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("first tier success short-circuits", func(t *testing.T) {
		sink := &eventSink{}
		svc := scriptedOracle(t, sink, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": func(*http.Request) (*http.Response, error) { return geminiReply("128"), nil },
		})

		estimate, err := svc.EstimateTempo(context.Background(), track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if estimate.BPM != 128 || estimate.Tier != 1 {
			t.Errorf("expected {128, tier 1}, got {%v, tier %d}", estimate.BPM, estimate.Tier)
		}
		if !estimate.Valid() {
			t.Error("expected a valid estimate")
		}
		if len(sink.all()) != 1 {
			t.Errorf("expected 1 tier event, got %d", len(sink.all()))
		}
	})

	t.Run("unparseable reply escalates to the next tier", func(t *testing.T) {
		sink := &eventSink{}
		svc := scriptedOracle(t, sink, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": func(*http.Request) (*http.Response, error) { return geminiReply("unknown"), nil },
			"tier-two": func(*http.Request) (*http.Response, error) { return geminiReply("128 BPM"), nil },
		})

		estimate, err := svc.EstimateTempo(context.Background(), track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if estimate.BPM != 128 || estimate.Tier != 2 {
			t.Errorf("expected {128, tier 2}, got {%v, tier %d}", estimate.BPM, estimate.Tier)
		}
		events := sink.all()
		if len(events) != 2 {
			t.Fatalf("expected 2 tier events, got %d", len(events))
		}
		if events[0].Tier != 1 || events[1].Tier != 2 {
			t.Errorf("expected events for tiers 1 and 2, got %d and %d", events[0].Tier, events[1].Tier)
		}
	})

	t.Run("out-of-range value is unusable", func(t *testing.T) {
		svc := scriptedOracle(t, nil, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": func(*http.Request) (*http.Response, error) { return geminiReply("300"), nil },
			"tier-two": func(*http.Request) (*http.Response, error) { return geminiReply("72.5"), nil },
		})

		estimate, err := svc.EstimateTempo(context.Background(), track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if estimate.BPM != 72.5 || estimate.Tier != 2 {
			t.Errorf("expected 300 rejected and {72.5, tier 2} returned, got {%v, tier %d}", estimate.BPM, estimate.Tier)
		}
	})

	t.Run("exhaustion returns absent estimate without error", func(t *testing.T) {
		sink := &eventSink{}
		fail := func(*http.Request) (*http.Response, error) { return nil, errors.New("connection refused") }
		svc := scriptedOracle(t, sink, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": fail, "tier-two": fail, "tier-three": fail,
		})

		estimate, err := svc.EstimateTempo(context.Background(), track)
		if err != nil {
			t.Fatalf("exhaustion must not be an error: %v", err)
		}
		if estimate.Valid() {
			t.Error("expected an absent estimate")
		}
		if estimate.Tier != 0 {
			t.Errorf("expected tier 0, got %d", estimate.Tier)
		}

		events := sink.all()
		if len(events) != 3 {
			t.Fatalf("expected 3 tier events, got %d", len(events))
		}
		for i, event := range events {
			if event.Err == nil {
				t.Errorf("event %d missing error", i)
			}
			if event.Tier != i+1 {
				t.Errorf("event %d has tier %d", i, event.Tier)
			}
		}
	})

	t.Run("non-2xx status escalates", func(t *testing.T) {
		svc := scriptedOracle(t, nil, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": func(*http.Request) (*http.Response, error) {
				return &http.Response{StatusCode: http.StatusServiceUnavailable, Body: io.NopCloser(strings.NewReader(""))}, nil
			},
			"tier-two": func(*http.Request) (*http.Response, error) { return geminiReply("140"), nil },
		})

		estimate, err := svc.EstimateTempo(context.Background(), track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if estimate.Tier != 2 {
			t.Errorf("expected tier 2 after 503, got %d", estimate.Tier)
		}
	})

	t.Run("cancellation is an error, not exhaustion", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		svc := scriptedOracle(t, nil, map[string]func(*http.Request) (*http.Response, error){})
		_, err := svc.EstimateTempo(ctx, track)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})

	t.Run("grounding citations are carried through", func(t *testing.T) {
		svc := scriptedOracle(t, nil, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": func(*http.Request) (*http.Response, error) { return geminiGroundedReply("174"), nil },
		})

		estimate, err := svc.EstimateTempo(context.Background(), track)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(estimate.Citations) != 2 {
			t.Fatalf("expected 2 citations, got %d", len(estimate.Citations))
		}
		if estimate.Citations[0].URI != "https://example.com/a" {
			t.Errorf("unexpected citation URI %q", estimate.Citations[0].URI)
		}
	})

	t.Run("api key travels in the request header", func(t *testing.T) {
		svc := scriptedOracle(t, nil, map[string]func(*http.Request) (*http.Response, error){
			"tier-one": func(req *http.Request) (*http.Response, error) {
				if got := req.Header.Get("x-goog-api-key"); got != "test-key" {
					t.Errorf("expected api key header, got %q", got)
				}
				return geminiReply("120"), nil
			},
		})
		if _, err := svc.EstimateTempo(context.Background(), track); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestExtractBPM(t *testing.T) {
	cases := []struct {
		in     string
		want   float64
		parsed bool
	}{
		{"128", 128, true},
		{"128 BPM", 128, true},
		{"The tempo is 93.5 BPM.", 93.5, true},
		{"  140\n", 140, true},
		{"72.5", 72.5, true},
		{"unknown", 0, false},
		{"", 0, false},
		{"no number here", 0, false},
	}

	for _, c := range cases {
		got, parsed := extractBPM(c.in)
		if parsed != c.parsed || got != c.want {
			t.Errorf("extractBPM(%q) = (%v, %v), want (%v, %v)", c.in, got, parsed, c.want, c.parsed)
		}
	}
}
