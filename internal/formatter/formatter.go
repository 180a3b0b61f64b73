// package formatter provides functions to export an assembled mix to various formats (CSV, Markdown, plain text, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
)

// MixDocument is the exportable view of a reviewed selection.
type MixDocument struct {
	Name        string              `json:"name"`
	Range       models.TempoRange   `json:"range"`
	Target      time.Duration       `json:"target"`
	Accumulated time.Duration       `json:"accumulated"`
	Matches     []models.TempoMatch `json:"matches"`
}

// NewMixDocument builds a document from scan output.
func NewMixDocument(name string, rng models.TempoRange, target time.Duration, matches []models.TempoMatch) *MixDocument {
	var accumulated time.Duration
	for _, match := range matches {
		accumulated += match.Track.Duration
	}
	return &MixDocument{
		Name:        name,
		Range:       rng,
		Target:      target,
		Accumulated: accumulated,
		Matches:     matches,
	}
}

// ExportToCSV converts a MixDocument to CSV with columns:
// ID, Title, Artist, Album, Duration, BPM, Variant, RawBPM, Tier
func ExportToCSV(doc *MixDocument) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "BPM", "Variant", "RawBPM", "Tier"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, match := range doc.Matches {
		record := []string{
			match.Track.ID,
			match.Track.Title,
			match.Track.Artist,
			match.Track.Album,
			shared.FormatDuration(match.Track.Duration),
			strconv.FormatFloat(match.DisplayBPM, 'f', 1, 64),
			string(match.Variant),
			strconv.FormatFloat(match.OriginalBPM, 'f', 1, 64),
			strconv.Itoa(match.Tier),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a MixDocument to Markdown
func ExportToMarkdown(doc *MixDocument) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", doc.Name))
	buf.WriteString(fmt.Sprintf("**Tempo range**: %s\n", doc.Range.String()))
	buf.WriteString(fmt.Sprintf("**Duration**: %s of %s target\n", shared.FormatDuration(doc.Accumulated), shared.FormatDuration(doc.Target)))
	buf.WriteString(fmt.Sprintf("**Tracks**: %d\n\n", len(doc.Matches)))

	buf.WriteString("## Tracks\n\n")
	for i, match := range doc.Matches {
		variantPart := ""
		if match.Variant != models.VariantOriginal {
			variantPart = fmt.Sprintf(", %s of %.0f", match.Variant, match.OriginalBPM)
		}
		buf.WriteString(fmt.Sprintf("%d. %s - %s [%s] (%.0f BPM%s)\n",
			i+1, match.Track.Artist, match.Track.Title,
			shared.FormatDuration(match.Track.Duration), match.DisplayBPM, variantPart))
	}

	return buf.Bytes(), nil
}

// ExportToText converts a MixDocument to plain text
func ExportToText(doc *MixDocument) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Mix: %s\n", doc.Name))
	buf.WriteString(fmt.Sprintf("Range: %s\n", doc.Range.String()))
	buf.WriteString(fmt.Sprintf("Duration: %s / %s\n", shared.FormatDuration(doc.Accumulated), shared.FormatDuration(doc.Target)))
	buf.WriteString(fmt.Sprintf("Tracks: %d\n\n", len(doc.Matches)))

	for i, match := range doc.Matches {
		buf.WriteString(fmt.Sprintf("%d. %s - %s (%.0f BPM)\n", i+1, match.Track.Artist, match.Track.Title, match.DisplayBPM))
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a MixDocument to indented JSON
func ExportToJSON(doc *MixDocument) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal mix document: %w", err)
	}
	return data, nil
}

// WriteMix renders the document in the requested format and writes it to
// path. Unknown formats default to JSON.
func WriteMix(doc *MixDocument, format, path string) error {
	var data []byte
	var err error

	switch format {
	case "csv":
		data, err = ExportToCSV(doc)
	case "markdown", "md":
		data, err = ExportToMarkdown(doc)
	case "txt", "text":
		data, err = ExportToText(doc)
	case "json":
		fallthrough
	default:
		data, err = ExportToJSON(doc)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
