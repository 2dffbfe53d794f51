package notifications

import "time"

// Kind tags what produced a notification.
type Kind string

const (
	KindGeneric                Kind = "generic"
	KindAnalysisReady          Kind = "analysis_ready"
	KindNewsletterConfirmation Kind = "newsletter_confirmation"
)

// Notification is a scheduled email. Sent implies SentAt is set; a sent row is never reverted.
type Notification struct {
	ID           string
	Recipient    string
	Subject      string
	Body         string
	Kind         Kind
	ContractID   string
	ScheduledFor time.Time
	Sent         bool
	SentAt       *time.Time
	CreatedAt    time.Time
}

// Due reports whether the notification is eligible for dispatch at now.
func (n Notification) Due(now time.Time) bool {
	return !n.Sent && !n.ScheduledFor.After(now)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Due    int `json:"due"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
