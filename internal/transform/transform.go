// Package transform turns a raw extract into canonical transaction records:
// validation (informational), cleaning, then feature enrichment.
package transform

import (
	"github.com/wakala/mpesa-analytics/internal/domain"
)

// Transformer runs the validate, clean and enrich stages in that order. It
// holds no state between calls.
type Transformer struct {
	obs Observer
}

// New creates a Transformer reporting to obs; a nil obs discards events.
func New(obs Observer) *Transformer {
	if obs == nil {
		obs = NopObserver{}
	}
	return &Transformer{obs: obs}
}

// Transform checks the batch against the input schema and returns the
// canonical records. A batch missing a required column fails with a
// *domain.SchemaError before any stage runs.
func (t *Transformer) Transform(b *domain.Batch) ([]domain.Transaction, error) {
	if b == nil {
		b = domain.NewBatch(nil, nil)
	}
	if missing := b.MissingRequired(); len(missing) > 0 {
		return nil, &domain.SchemaError{Missing: missing}
	}

	t.obs.Validated(Validate(b))

	cleaned, stats := Clean(b)
	t.obs.Cleaned(stats)

	out := Enrich(cleaned)
	t.obs.Enriched(len(out))

	return out, nil
}
