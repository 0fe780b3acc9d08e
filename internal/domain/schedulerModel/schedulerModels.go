package schedulerModel

import (
	"context"
	"time"
)

type Phase string

const (
	Idle      Phase = "idle"
	Crawling  Phase = "crawling"
	Ingesting Phase = "ingesting"
	Failed    Phase = "failed"
)

// Running reports whether an update cycle is in flight.
func (p Phase) Running() bool {
	return p == Crawling || p == Ingesting
}

type TriggerResult string

const (
	Accepted  TriggerResult = "accepted"
	Coalesced TriggerResult = "coalesced"
)

type CategorySummary struct {
	Discovered  int    `json:"discovered"`
	New         int    `json:"new"`
	Changed     int    `json:"changed"`
	Unchanged   int    `json:"unchanged"`
	Failed      int    `json:"failed"`
	ListingFail string `json:"listing_error,omitempty"`
}

type CycleSummary struct {
	StartedAt     time.Time                  `json:"started_at"`
	FinishedAt    time.Time                  `json:"finished_at"`
	Categories    map[string]CategorySummary `json:"categories"`
	Ingested      int                        `json:"ingested"`
	Repaired      int                        `json:"repaired"`
	IngestFailed  int                        `json:"ingest_failed"`
	ChunksWritten int                        `json:"chunks_written"`
	Forced        bool                       `json:"forced"`
}

type State struct {
	Phase          Phase         `json:"phase"`
	LastSuccess    time.Time     `json:"last_success"`
	LastAttempt    time.Time     `json:"last_attempt"`
	Interval       time.Duration `json:"interval"`
	DocumentsAdded int           `json:"documents_added"`
	LastError      string        `json:"last_error,omitempty"`
	LastCycle      *CycleSummary `json:"last_cycle,omitempty"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

type Status struct {
	Phase             Phase         `json:"phase"`
	LastSuccess       time.Time     `json:"last_success"`
	LastAttempt       time.Time     `json:"last_attempt"`
	NextScheduledTime time.Time     `json:"next_scheduled_time"`
	Interval          string        `json:"interval"`
	DocumentsAdded    int           `json:"documents_added"`
	LastError         string        `json:"last_error,omitempty"`
	LastCycle         *CycleSummary `json:"last_cycle,omitempty"`
}

// StateStore persists the single scheduler state record.
type StateStore interface {
	// Load returns found=false when nothing was persisted yet.
	Load(ctx context.Context) (state State, found bool, err error)
	Save(ctx context.Context, state State) error
}
