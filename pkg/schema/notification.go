package schema

import "time"

// Severity of a notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
)

// Message keys used by notifications.
const (
	KeyPurchaseSuccess     = "toast.success.purchase"
	KeyInsufficientCredits = "toast.error.credits"
	KeyUploadSuccess       = "toast.success.upload"
)

// Notification is a transient status message. Key is looked up in the
// string tables; Subject, when set, is quoted after the looked-up text.
type Notification struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Subject   string    `json:"subject,omitempty"`
	Severity  Severity  `json:"severity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// VisibleAt reports whether n is still on screen at t.
func (n Notification) VisibleAt(t time.Time) bool {
	return t.Before(n.ExpiresAt)
}
