package campaign

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
)

// Service implements campaign business logic. It is the only writer of
// campaign status. All public methods are safe for concurrent use if the
// underlying repository is concurrency-safe.
type Service struct {
	repo     Repository
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a campaign service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:     repo,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateInput holds the fields for creating a new campaign. Empty template
// and segment default to "default" and "all".
type CreateInput struct {
	Name          string `json:"name" validate:"required,max=200"`
	Subject       string `json:"subject" validate:"required,max=200"`
	TemplateID    string `json:"template_id"`
	TargetSegment string `json:"target_segment"`
	Content       string `json:"content" validate:"required"`
}

// Create validates input and persists a new campaign in draft status.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Subject = strings.TrimSpace(input.Subject)
	if strings.TrimSpace(input.Content) == "" {
		input.Content = ""
	}
	if err := s.validateInput(input); err != nil {
		return nil, err
	}

	if input.TemplateID == "" {
		input.TemplateID = string(domain.TemplateDefault)
	}
	tmpl, err := domain.ParseTemplateID(input.TemplateID)
	if err != nil {
		return nil, &ValidationError{Field: "template_id", Message: err.Error()}
	}
	if input.TargetSegment == "" {
		input.TargetSegment = string(domain.SegmentAll)
	}
	seg, err := domain.ParseSegment(input.TargetSegment)
	if err != nil {
		return nil, &ValidationError{Field: "target_segment", Message: err.Error()}
	}

	c := &domain.Campaign{
		ID:            uuid.New().String(),
		Name:          input.Name,
		Subject:       input.Subject,
		TemplateID:    tmpl,
		TargetSegment: seg,
		Content:       input.Content,
		Status:        domain.CampaignDraft,
		CreatedAt:     s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create campaign: %w", err)
	}
	logger.Info("campaign created", "campaign_id", c.ID, "template", c.TemplateID, "segment", c.TargetSegment)
	return c, nil
}

func (s *Service) validateInput(input CreateInput) error {
	err := s.validate.Struct(input)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Message: "is required"}
	case "max":
		return &ValidationError{Field: field, Message: "must be at most " + fe.Param() + " characters"}
	default:
		return &ValidationError{Field: field, Message: "is invalid"}
	}
}

// checkID rejects ids that cannot name a campaign. Campaign ids are UUIDs,
// so anything else is reported as not found without a repository round trip.
func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: campaign %q", ErrNotFound, id)
	}
	return nil
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Delete removes a draft campaign. Campaigns that have started sending are
// kept as history.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("campaign deleted", "campaign_id", id)
	return nil
}

// BeginSend atomically moves a draft campaign to sending and returns the
// snapshot to dispatch. Concurrent callers for the same campaign race on the
// repository's conditional update; every loser gets ErrInvalidState.
func (s *Service) BeginSend(ctx context.Context, id string) (*domain.Campaign, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := s.repo.TransitionStatus(ctx, id, domain.CampaignDraft, domain.CampaignSending); err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil, fmt.Errorf("%w: campaign %s is not a draft (already sending or sent)", ErrInvalidState, id)
		}
		return nil, err
	}
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload campaign: %w", err)
	}
	logger.Info("campaign sending", "campaign_id", id)
	return c, nil
}

// Complete records the outcome of a dispatch and moves the campaign from
// sending to sent when every attempted delivery succeeded, or to failed
// otherwise.
func (s *Service) Complete(ctx context.Context, id string, result domain.SendResult) (*domain.Campaign, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	comp := domain.Completion{
		Status:         domain.CampaignSent,
		SentAt:         s.now(),
		RecipientCount: result.Attempted,
	}
	if !result.Succeeded() {
		reason := FailureReason(result)
		comp.Status = domain.CampaignFailed
		comp.FailureReason = &reason
	}

	if err := s.repo.Complete(ctx, id, comp); err != nil {
		if errors.Is(err, ErrInvalidState) {
			return nil, fmt.Errorf("%w: campaign %s is not sending", ErrInvalidState, id)
		}
		return nil, err
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload campaign: %w", err)
	}
	if comp.Status == domain.CampaignFailed {
		logger.Warn("campaign failed", "campaign_id", id, "reason", *comp.FailureReason)
	} else {
		logger.Info("campaign sent", "campaign_id", id, "recipients", comp.RecipientCount)
	}
	return c, nil
}

// FailureReason summarizes an unsuccessful SendResult for the campaign
// record.
func FailureReason(r domain.SendResult) string {
	switch {
	case r.EmptySegment:
		return "empty segment: no subscribers matched the target segment"
	case r.Fatal != "" && r.Delivered == 0 && r.Failed == 0:
		return "send aborted: " + r.Fatal
	case r.Attempted == 0:
		return "no eligible recipients: every targeted subscriber is unsubscribed"
	}

	reason := fmt.Sprintf("%d of %d deliveries failed", r.Failed, r.Attempted)
	if r.Fatal != "" {
		reason += "; aborted: " + r.Fatal
	}
	if len(r.Errors) > 0 {
		reason += fmt.Sprintf("; first error: %s: %s", r.Errors[0].Email, r.Errors[0].Error)
	}
	return reason
}

// Stats holds campaign totals for the dashboard.
type Stats struct {
	Total  int `json:"total"`
	Draft  int `json:"draft"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}

// GetStats computes campaign statistics for the dashboard.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	for _, q := range []struct {
		status domain.CampaignStatus
		dst    *int
	}{
		{"", &st.Total},
		{domain.CampaignDraft, &st.Draft},
		{domain.CampaignSent, &st.Sent},
		{domain.CampaignFailed, &st.Failed},
	} {
		n, err := s.repo.Count(ctx, q.status)
		if err != nil {
			return nil, err
		}
		*q.dst = n
	}
	return &st, nil
}
