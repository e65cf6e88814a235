package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/vikabot-systems/leadscout/internal/model"
)

// ErrNotFound is returned when a lead or run does not exist.
var ErrNotFound = eris.New("store: not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status   model.PipelineStatus `json:"status,omitempty"`
	Tier     model.Tier           `json:"tier,omitempty"`
	Source   string               `json:"source,omitempty"`
	MinScore float64              `json:"min_score,omitempty"`
	Unsynced bool                 `json:"unsynced,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
	Offset   int                  `json:"offset,omitempty"`
}

// RunFilter specifies criteria for listing collection runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store is the persistence interface for the lead pipeline. The identity key
// is the dedup boundary: UpsertLead is atomic per key, so concurrent writers
// racing on the same candidate produce exactly one creation.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead model.Lead) (model.Lead, bool, error)
	GetLead(ctx context.Context, identityKey string) (*model.Lead, error)
	LeadExists(ctx context.Context, identityKey string) (bool, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, filter LeadFilter) (int, error)
	MarkSynced(ctx context.Context, identityKeys []string) error
	// SetScore overwrites a lead's score and tier, bypassing merge rules.
	// UpsertLead never lowers a score; repricing after a policy change must.
	SetScore(ctx context.Context, identityKey string, score float64, tier model.Tier) error

	// Runs
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
