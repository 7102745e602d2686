package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

// Task types shared by producers and the worker.
const (
	TypeIngestListings = "listings:ingest"
	TypeProcessProfile = "matches:process-profile"
)

// IngestListingsPayload selects the board and query source of one ingestion.
type IngestListingsPayload struct {
	BoardID          uint   `json:"board_id"`
	SearchCriteriaID *uint  `json:"search_criteria_id,omitempty"`
	Query            string `json:"query,omitempty"`
	MaxResults       int    `json:"max_results,omitempty"`
	// UserProfileID receives the completion notification when set.
	UserProfileID uint   `json:"user_profile_id,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// ProcessProfilePayload runs the full matching pipeline for one profile.
type ProcessProfilePayload struct {
	UserProfileID uint   `json:"user_profile_id"`
	CorrelationID string `json:"correlation_id"`
}

func NewIngestListingsTask(p IngestListingsPayload, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngestListings, payload, opts...), nil
}

func NewProcessProfileTask(profileID uint, correlationID string, opts ...asynq.Option) (*asynq.Task, error) {
	payload, err := json.Marshal(ProcessProfilePayload{
		UserProfileID: profileID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeProcessProfile, payload, opts...), nil
}
