// Package source defines the lead source abstraction and its adapters:
// profile search APIs, web contact scraping, managed scraping actors, and
// static lead lists.
package source

import (
	"context"
	"fmt"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// Source names as they appear in config and on stored leads.
const (
	NameProfileSearch = "profile_search"
	NameWebContact    = "web_contact"
	NameActor         = "actor"
	NameLeadList      = "lead_list"
)

// Query is one search unit handed to a source: a title/location pair plus
// optional refinements. The collector builds the query set as the cross
// product of configured titles and locations.
type Query struct {
	Title        string
	Location     string
	Keywords     string
	CompanySizes []string
}

// Describe renders the query for run records and logs.
func (q Query) Describe() string {
	s := q.Title
	if q.Location != "" {
		s += " / " + q.Location
	}
	if q.Keywords != "" {
		s += " / " + q.Keywords
	}
	return s
}

// Source produces raw candidates for a query. Implementations tag each
// candidate with their name so provenance survives normalization.
type Source interface {
	Name() string
	FetchCandidates(ctx context.Context, query Query, maxResults int) ([]model.RawCandidate, error)
}

// Error wraps a source failure with its origin and whether the collector
// may retry the call.
type Error struct {
	Source    string
	Err       error
	Retryable bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("source %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err as a source failure.
func NewError(source string, err error, retryable bool) *Error {
	return &Error{Source: source, Err: err, Retryable: retryable}
}
