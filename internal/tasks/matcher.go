package tasks

import "github.com/desertthunder/cadence/internal/models"

// MatchTempo decides whether a raw oracle tempo satisfies the target range,
// allowing for half-time/double-time aliasing: tempo estimators and cadence
// targets commonly disagree by a factor of two.
//
// Candidates are checked in priority order — the original value, then its
// half, then its double — so the original wins when more than one candidate
// falls inside the inclusive range. Returns false when no candidate is in
// range. The returned match carries the in-range value as DisplayBPM and the
// raw value for provenance; Track and Tier are left for the caller to fill.
func MatchTempo(bpm float64, rng models.TempoRange) (models.TempoMatch, bool) {
	candidates := []struct {
		value   float64
		variant models.Variant
	}{
		{bpm, models.VariantOriginal},
		{bpm / 2, models.VariantHalfTime},
		{bpm * 2, models.VariantDoubleTime},
	}

	for _, c := range candidates {
		if rng.Contains(c.value) {
			return models.TempoMatch{
				DisplayBPM:  c.value,
				Variant:     c.variant,
				OriginalBPM: bpm,
			}, true
		}
	}

	return models.TempoMatch{}, false
}
