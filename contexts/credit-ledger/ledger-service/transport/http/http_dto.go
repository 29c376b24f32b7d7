package httptransport

import "time"

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type BalanceResponse struct {
	SubjectID string `json:"subject_id"`
	Balance   int64  `json:"balance"`
}

type EntryResponse struct {
	EntryID          string    `json:"entry_id"`
	Sequence         int64     `json:"sequence"`
	Delta            int64     `json:"delta"`
	ResultingBalance int64     `json:"resulting_balance"`
	Kind             string    `json:"kind"`
	Reason           string    `json:"reason,omitempty"`
	RelatedEntityID  string    `json:"related_entity_id,omitempty"`
	Administrative   bool      `json:"administrative,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

type HistoryRequest struct {
	Cursor    string
	Limit     int
	Direction string
}

type HistoryResponse struct {
	SubjectID  string          `json:"subject_id"`
	Entries    []EntryResponse `json:"entries"`
	NextCursor string          `json:"next_cursor,omitempty"`
	HasMore    bool            `json:"has_more"`
}

type AdjustRequest struct {
	Delta        int64  `json:"delta"`
	Reason       string `json:"reason"`
	Compensation bool   `json:"compensation"`
}

type AuditResponse struct {
	SubjectID       string   `json:"subject_id"`
	CachedBalance   int64    `json:"cached_balance"`
	ReplayedBalance int64    `json:"replayed_balance"`
	EntryCount      int      `json:"entry_count"`
	Consistent      bool     `json:"consistent"`
	Violations      []string `json:"violations,omitempty"`
}
