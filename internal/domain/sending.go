package domain

// EmailMessage is the fully-resolved message handed to a transport.
// By the time a message reaches this struct, template rendering and
// unsubscribe link injection are complete.
type EmailMessage struct {
	ID          string            `json:"id"`
	CampaignID  string            `json:"campaign_id"`
	Email       string            `json:"email"`
	FromName    string            `json:"from_name"`
	FromEmail   string            `json:"from_email"`
	ReplyTo     string            `json:"reply_to"`
	Subject     string            `json:"subject"`
	HTMLContent string            `json:"html_content"`
	TextContent string            `json:"text_content"`
	Headers     map[string]string `json:"headers,omitempty"`
}

// RecipientError records a failed delivery attempt for one address.
type RecipientError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// SendResult aggregates the outcome of dispatching one campaign. It is not
// persisted per recipient; the campaign keeps only the count and a reason.
type SendResult struct {
	Attempted     int              `json:"attempted"`
	Delivered     int              `json:"delivered"`
	Failed        int              `json:"failed"`
	Skipped       int              `json:"skipped"`
	Errors        []RecipientError `json:"errors,omitempty"`
	OmittedErrors int              `json:"omitted_errors,omitempty"`
	EmptySegment  bool             `json:"empty_segment,omitempty"`
	Fatal         string           `json:"fatal,omitempty"`
}

// Succeeded reports whether every attempted delivery went through and at
// least one recipient was attempted.
func (r *SendResult) Succeeded() bool {
	return r.Attempted > 0 && r.Failed == 0 && r.Fatal == "" && !r.EmptySegment
}
