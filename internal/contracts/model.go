package contracts

import "time"

// Status is a contract's position in the analysis lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAnalyzing Status = "analyzing"
	StatusAnalyzed  Status = "analyzed"
	StatusFailed    Status = "failed"
)

// Contract is a user-owned document submitted for analysis.
// Result and FailureReason are written independently: a failed attempt never clears Result.
type Contract struct {
	ID            string         `json:"id"`
	UserID        string         `json:"userId"`
	FileName      string         `json:"fileName"`
	ContentType   string         `json:"contentType"`
	SizeBytes     int64          `json:"sizeBytes"`
	StorageKey    string         `json:"-"`
	Status        Status         `json:"status"`
	Result        map[string]any `json:"result,omitempty"`
	FailureReason string         `json:"failureReason,omitempty"`
	AttemptToken  string         `json:"-"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

// Stats are the dashboard counts for one owner. Contracts mid-analysis count as pending.
type Stats struct {
	Total    int `json:"total"`
	Analyzed int `json:"analyzed"`
	Pending  int `json:"pending"`
	Failed   int `json:"failed"`
}

// Owner identifies the session on whose behalf an operation runs.
type Owner struct {
	ID    string
	Email string
}
