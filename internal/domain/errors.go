package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema marks a batch that is missing a structurally required column.
	ErrSchema = errors.New("schema error")

	ErrNotFound      = errors.New("resource not found")
	ErrRunInProgress = errors.New("pipeline run already in progress")
	ErrNoFreshData   = errors.New("no new records loaded in freshness window")
)

// SchemaError lists the required columns a batch arrived without.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns [%s]", ErrSchema, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}
