package contracts

import "time"

type contractResponse struct {
	ID            string         `json:"id"`
	FileName      string         `json:"fileName"`
	ContentType   string         `json:"contentType"`
	SizeBytes     int64          `json:"sizeBytes"`
	Status        Status         `json:"status"`
	Result        map[string]any `json:"result"`
	FailureReason string         `json:"failureReason,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func toResponse(c Contract) contractResponse {
	return contractResponse{
		ID:            c.ID,
		FileName:      c.FileName,
		ContentType:   c.ContentType,
		SizeBytes:     c.SizeBytes,
		Status:        c.Status,
		Result:        c.Result,
		FailureReason: c.FailureReason,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

func toResponses(in []Contract) []contractResponse {
	out := make([]contractResponse, 0, len(in))
	for _, c := range in {
		out = append(out, toResponse(c))
	}
	return out
}
