package transform

import (
	"github.com/rs/zerolog"
)

// Observer receives the transform's progress events.
type Observer interface {
	Validated(report ValidationReport)
	Cleaned(stats CleanStats)
	Enriched(rows int)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Validated(ValidationReport) {}
func (NopObserver) Cleaned(CleanStats)         {}
func (NopObserver) Enriched(int)               {}

// LogObserver writes events to a zerolog logger.
type LogObserver struct {
	log zerolog.Logger
}

func NewLogObserver(log zerolog.Logger) *LogObserver {
	return &LogObserver{log: log.With().Str("component", "transform").Logger()}
}

func (o *LogObserver) Validated(r ValidationReport) {
	ev := o.log.Info()
	if r.DuplicateIDs > 0 || r.NegativeAmounts > 0 || len(r.NullValues) > 0 {
		ev = o.log.Warn()
	}
	ev.Int("rows", r.Rows).
		Interface("null_values", r.NullValues).
		Interface("dtypes", r.ColumnTypes).
		Int("duplicate_ids", r.DuplicateIDs).
		Int("negative_amounts", r.NegativeAmounts).
		Msg("validation results")
}

func (o *LogObserver) Cleaned(s CleanStats) {
	o.log.Info().
		Int("input_rows", s.InputRows).
		Int("output_rows", s.OutputRows).
		Int("duplicate_ids", s.DuplicateIDs).
		Int("negative_amounts", s.NegativeAmounts).
		Int("invalid_dates", s.InvalidDates).
		Int("clamped_scores", s.ClampedScores).
		Msgf("cleaned data from %d to %d rows", s.InputRows, s.OutputRows)
}

func (o *LogObserver) Enriched(rows int) {
	o.log.Info().Int("rows", rows).Msg("data enrichment completed")
}

type multiObserver []Observer

// Observers fans events out to every observer in order.
func Observers(obs ...Observer) Observer {
	return multiObserver(obs)
}

func (m multiObserver) Validated(r ValidationReport) {
	for _, o := range m {
		o.Validated(r)
	}
}

func (m multiObserver) Cleaned(s CleanStats) {
	for _, o := range m {
		o.Cleaned(s)
	}
}

func (m multiObserver) Enriched(rows int) {
	for _, o := range m {
		o.Enriched(rows)
	}
}
