package httptransport

import "time"

type ErrorResponse struct {
	Error string `json:"error"`
}

type EntityResponse struct {
	EntityID          string     `json:"entity_id"`
	Kind              string     `json:"kind"`
	Title             string     `json:"title"`
	AuthorID          string     `json:"author_id"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	ExtraCredit       int64      `json:"extra_credit"`
	WinnerCount       int        `json:"winner_count"`
	DistributionState string     `json:"distribution_state"`
	Closed            bool       `json:"closed"`
	Deleted           bool       `json:"deleted,omitempty"`
	ParticipantCount  int        `json:"participant_count"`
}

type CloseRequest struct {
	SkipAuthorCheck bool `json:"skip_author_check"`
}

type CloseResponse struct {
	Entity             EntityResponse `json:"entity"`
	AlreadyClosed      bool           `json:"already_closed"`
	Winners            []string       `json:"winners,omitempty"`
	AlreadyDistributed bool           `json:"already_distributed,omitempty"`
	DistributionError  string         `json:"distribution_error,omitempty"`
}

type SweepResponse struct {
	Closed      int `json:"closed"`
	Distributed int `json:"distributed"`
	Failed      int `json:"failed"`
}

type UploadRequest struct {
	Title            string     `json:"title"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	ExtraCredit      int64      `json:"extra_credit"`
	WinnerCount      int        `json:"winner_count"`
	AgeScreening     bool       `json:"age_screening"`
}

type UploadResponse struct {
	Entity   EntityResponse `json:"entity"`
	Charged  int64          `json:"charged"`
	Balance  *int64         `json:"balance,omitempty"`
	Replayed bool           `json:"replayed,omitempty"`
}

type ParticipateResponse struct {
	EntityID  string `json:"entity_id"`
	SubjectID string `json:"subject_id"`
	Reward    int64  `json:"reward"`
	Balance   *int64 `json:"balance,omitempty"`
}

type PullUpRequest struct {
	ExtraCredit int64 `json:"extra_credit"`
	WinnerCount int   `json:"winner_count"`
}

type ChargeResponse struct {
	Entity  *EntityResponse `json:"entity,omitempty"`
	Charged int64           `json:"charged"`
	Balance *int64          `json:"balance,omitempty"`
}

type EditRequest struct {
	Title       string `json:"title"`
	ExtraCredit int64  `json:"extra_credit"`
	WinnerCount int    `json:"winner_count"`
}

type DeleteResponse struct {
	Entity         EntityResponse `json:"entity"`
	AlreadyDeleted bool           `json:"already_deleted"`
}
