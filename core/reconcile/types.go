package reconcile

import "time"

// Result is the reconciliation output for one record identity.
type Result struct {
	// ID is the record identity, e.g. "#10:3".
	ID string `json:"id"`

	// SourcePresent reports whether the record exists in the source database.
	SourcePresent bool `json:"source_present"`

	// Selected reports whether the policy mirrors the record.
	Selected bool `json:"selected"`

	// IndexPresent reports whether the index holds a document for the record.
	IndexPresent bool `json:"index_present"`
}

// Status classifies a result.
func (r Result) Status() Status {
	switch {
	case r.SourcePresent && r.Selected && !r.IndexPresent:
		return StatusMissingIndex
	case r.IndexPresent && (!r.SourcePresent || !r.Selected):
		return StatusStaleIndex
	default:
		return StatusInSync
	}
}

// Status is the classification of a Result.
type Status string

const (
	StatusInSync       Status = "in_sync"
	StatusMissingIndex Status = "missing_index"
	StatusStaleIndex   Status = "stale_index"
)

// Spec names one class of one database to reconcile.
type Spec struct {
	// Database is the source database name.
	Database string

	// Class is the document class whose records are compared.
	Class string

	// CacheTTL is the time-to-live of built indices. Zero disables caching.
	CacheTTL time.Duration
}

// CacheKey identifies the cached indices of the spec.
func (s *Spec) CacheKey() string {
	return s.Database + "|" + s.Class
}

// ActionType is the type of a planned action.
type ActionType string

const (
	// ActionReindex indexes a source record missing from the index.
	ActionReindex ActionType = "reindex"

	// ActionDeleteIndex removes an index document without a mirrored record.
	ActionDeleteIndex ActionType = "delete_index"
)

// Action is one planned mutation.
type Action struct {
	Type   ActionType `json:"type"`
	Key    string     `json:"key"`
	Reason string     `json:"reason"`
}

// PlanSummary aggregates a plan.
type PlanSummary struct {
	TotalItems     int `json:"total_items"`
	InSync         int `json:"in_sync"`
	MissingIndex   int `json:"missing_index"`
	StaleIndex     int `json:"stale_index"`
	ReindexActions int `json:"reindex_actions"`
	PurgeActions   int `json:"purge_actions"`
}

// Plan is the outcome of ReconcileWithPlan.
type Plan struct {
	Spec    Spec        `json:"-"`
	Summary PlanSummary `json:"summary"`
	Actions []Action    `json:"actions"`
	Results []Result    `json:"results"`
}

// Options controls planning and application.
type Options struct {
	// DryRun plans without executing.
	DryRun bool

	// DoReindex plans reindex actions for missing documents.
	DoReindex bool

	// DoPurge plans delete actions for stale documents.
	DoPurge bool

	// Confirmed must be set to execute purge actions.
	Confirmed bool
}
