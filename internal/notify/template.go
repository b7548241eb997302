package notify

import "time"

// Template names a lifecycle notification.
type Template string

const (
	TemplateDeletionScheduled Template = "account_delete_scheduled"
	TemplateDeletionReminder  Template = "account_delete_imminent"
	TemplateDeletionCancelled Template = "account_delete_cancelled"
	TemplateDeletionCompleted Template = "account_delete_completed"
)

// Templates lists every template the renderer must provide.
var Templates = []Template{
	TemplateDeletionScheduled,
	TemplateDeletionReminder,
	TemplateDeletionCancelled,
	TemplateDeletionCompleted,
}

// DefaultLanguage is used when a recipient's language has no templates.
const DefaultLanguage = "en"

// Recipient identifies who a message is addressed to.
type Recipient struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// Message is a rendered email ready for transport.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// MailPayload is the body of a queued send_mail job.
type MailPayload struct {
	Template  Template       `json:"template"`
	Recipient Recipient      `json:"recipient"`
	Vars      map[string]any `json:"vars"`
}

// FormatTime renders timestamps the way every template expects them.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2 January 2006 15:04 MST")
}
