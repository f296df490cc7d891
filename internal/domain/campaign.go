package domain

import (
	"fmt"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignFailed  CampaignStatus = "failed"
)

// CanTransitionTo reports whether moving from s to next is a forward step
// of the campaign lifecycle: draft -> sending -> {sent, failed}.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	switch s {
	case CampaignDraft:
		return next == CampaignSending
	case CampaignSending:
		return next == CampaignSent || next == CampaignFailed
	default:
		return false
	}
}

// IsTerminal returns true for statuses a campaign can never leave.
func (s CampaignStatus) IsTerminal() bool {
	return s == CampaignSent || s == CampaignFailed
}

// TemplateID names one of the built-in email skeletons.
type TemplateID string

const (
	TemplateDefault     TemplateID = "default"
	TemplatePromotional TemplateID = "promotional"
	TemplateNewsletter  TemplateID = "newsletter"
)

// TemplateIDs lists every built-in template in display order.
var TemplateIDs = []TemplateID{TemplateDefault, TemplatePromotional, TemplateNewsletter}

// ParseTemplateID maps a raw key to a TemplateID, rejecting unknown keys.
func ParseTemplateID(s string) (TemplateID, error) {
	for _, id := range TemplateIDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown template %q", s)
}

// Segment names a targeting rule evaluated at send time.
type Segment string

const (
	SegmentAll        Segment = "all"
	SegmentActiveOnly Segment = "active_only"
)

// Segments lists every supported segment.
var Segments = []Segment{SegmentAll, SegmentActiveOnly}

// ParseSegment maps a raw key to a Segment, rejecting unknown keys.
func ParseSegment(s string) (Segment, error) {
	for _, seg := range Segments {
		if string(seg) == s {
			return seg, nil
		}
	}
	return "", fmt.Errorf("unknown segment %q", s)
}

// Campaign is a single outbound email blast: one template, one content body,
// one target segment.
type Campaign struct {
	ID             string         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	Subject        string         `json:"subject" db:"subject"`
	TemplateID     TemplateID     `json:"template_id" db:"template_id"`
	TargetSegment  Segment        `json:"target_segment" db:"target_segment"`
	Content        string         `json:"content" db:"content"`
	Status         CampaignStatus `json:"status" db:"status"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	SentAt         *time.Time     `json:"sent_at" db:"sent_at"`
	RecipientCount *int           `json:"recipient_count" db:"recipient_count"`
	FailureReason  *string        `json:"failure_reason" db:"failure_reason"`
}

// IsTerminal returns true if the campaign is in a final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status.IsTerminal()
}

// Completion holds the summary fields written when a campaign leaves the
// sending state.
type Completion struct {
	Status         CampaignStatus
	SentAt         time.Time
	RecipientCount int
	FailureReason  *string
}
