package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/cadence/internal/formatter"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// scanOptions assembles ScanOptions from flags, falling back to config
// defaults for anything unset.
func (r *Runner) scanOptions(cmd *cli.Command) (tasks.ScanOptions, error) {
	scanConf := r.config.Scan

	minBPM := scanConf.MinBPM
	if cmd.IsSet("min-bpm") {
		minBPM = cmd.Float64("min-bpm")
	}
	maxBPM := scanConf.MaxBPM
	if cmd.IsSet("max-bpm") {
		maxBPM = cmd.Float64("max-bpm")
	}
	targetMinutes := scanConf.TargetMinutes
	if cmd.IsSet("target") {
		targetMinutes = int(cmd.Int("target"))
	}
	workers := scanConf.Workers
	if cmd.IsSet("workers") {
		workers = int(cmd.Int("workers"))
	}
	orderName := scanConf.Order
	if cmd.IsSet("order") {
		orderName = cmd.String("order")
	}
	includeLibrary := scanConf.IncludeLibrary
	if cmd.IsSet("library") {
		includeLibrary = cmd.Bool("library")
	}

	order, err := models.ParseSourceOrder(orderName)
	if err != nil {
		return tasks.ScanOptions{}, fmt.Errorf("%w: %v", shared.ErrInvalidFlag, err)
	}

	opts := tasks.ScanOptions{
		Range:          models.TempoRange{Min: minBPM, Max: maxBPM},
		Target:         time.Duration(targetMinutes) * time.Minute,
		Workers:        workers,
		Order:          order,
		IncludeLibrary: includeLibrary,
		PageSize:       scanConf.PageSize,
	}
	return opts, opts.Validate()
}

// Scan runs the tempo scan and prints a summary of the assembled selection.
func (r *Runner) Scan(ctx context.Context, cmd *cli.Command) error {
	opts, err := r.scanOptions(cmd)
	if err != nil {
		return err
	}

	engine, err := r.engine()
	if err != nil {
		return err
	}

	r.logger.Info("starting scan", "range", opts.Range.String(), "target", opts.Target)

	progress := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			switch update.Phase {
			case tasks.ListSources:
				r.writePlain("→ %s\n", update.Message)
			case tasks.ScanSource:
				r.writePlain("→ [%d/%d] %s\n", update.Step, update.Total, update.Message)
			case tasks.ScanLibrary:
				r.writePlain("→ %s\n", update.Message)
			case tasks.TrackMatched:
				r.writePlain("  ✓ %s\n", update.Message)
			case tasks.TrackFailed:
				r.writePlain("  ✗ %s\n", update.Message)
			case tasks.TargetReached:
				r.writePlain("★ %s\n", update.Message)
			}
		}
	}()

	result, scanErr := engine.Scan(ctx, progress, opts)
	close(progress)
	<-done

	if scanErr != nil && !errors.Is(scanErr, shared.ErrEmptySelection) {
		return scanErr
	}

	r.printScanSummary(result, opts)

	name := cmd.String("name")
	if name == "" {
		name = fmt.Sprintf("Cadence %s", opts.Range.String())
	}

	if output := cmd.String("output"); output != "" && len(result.Matches) > 0 {
		doc := formatter.NewMixDocument(name, opts.Range, opts.Target, result.Matches)
		if err := formatter.WriteMix(doc, cmd.String("format"), output); err != nil {
			return err
		}
		r.writePlain("✓ Selection written to %s\n", output)
	}

	if cmd.Bool("create") && len(result.Matches) > 0 {
		description := fmt.Sprintf("Tempo-matched mix (%s), assembled %s",
			opts.Range.String(), time.Now().Format("2006-01-02"))
		playlist, err := engine.CreateMix(ctx, nil, result.Session, name, description)
		if err != nil {
			return fmt.Errorf("failed to create playlist: %w", err)
		}
		r.writePlain("✓ Created playlist '%s' (%d tracks)\n", playlist.Name, len(result.Matches))
	}

	if scanErr != nil {
		return scanErr
	}
	return nil
}

func (r *Runner) printScanSummary(result *tasks.ScanResult, opts tasks.ScanOptions) {
	r.writePlainHeader("Scan Summary")
	r.writePlain("Tempo range:   %s\n", opts.Range.String())
	r.writePlain("Accumulated:   %s of %s target\n",
		shared.FormatDuration(result.Session.Accumulated()), shared.FormatDuration(opts.Target))
	r.writePlain("Matched:       %d tracks\n", len(result.Matches))
	r.writePlain("Rejected:      %d (out of range)\n", result.Rejected)
	r.writePlain("Unresolvable:  %d\n", result.Failed)
	r.writePlain("Cache hits:    %d\n", result.CacheHits)

	switch {
	case result.Cancelled:
		r.writePlain("Status:        cancelled\n")
	case result.TargetReached:
		r.writePlain("Status:        target reached\n")
	case len(result.Matches) > 0:
		r.writePlain("Status:        partial (sources exhausted)\n")
	default:
		r.writePlain("Status:        no matches\n")
	}

	if len(result.Matches) > 0 {
		r.writePlain("\n")
		for i, match := range result.Matches {
			variantPart := ""
			if match.Variant != models.VariantOriginal {
				variantPart = fmt.Sprintf(" (%s of %.0f)", match.Variant, match.OriginalBPM)
			}
			r.writePlain("%2d. %s - %s [%s] %.0f BPM%s\n",
				i+1, match.Track.Artist, match.Track.Title,
				shared.FormatDuration(match.Track.Duration), match.DisplayBPM, variantPart)
		}
	}
}
