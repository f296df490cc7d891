package api

import (
	"context"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
	"github.com/ignite/campaign-mailer/internal/worker"
)

// previewEmail is the address campaign previews are rendered for.
const previewEmail = "preview@example.com"

// Previewer renders a campaign for display in the admin UI.
type Previewer interface {
	Render(id domain.TemplateID, c *domain.Campaign, sub *domain.Subscriber) (string, error)
}

// CampaignSender runs the send orchestration for a campaign.
type CampaignSender interface {
	Process(ctx context.Context, id string) (*worker.ProcessResult, error)
	Enqueue(ctx context.Context, id string) (*domain.Campaign, error)
	Stats() map[string]int64
}

// SendQuota reports how much of the transport's send quota is used.
type SendQuota interface {
	Usage(ctx context.Context) (map[string]int64, error)
}

// Handlers contains all HTTP handlers
type Handlers struct {
	subscribers *subscriber.Service
	campaigns   *campaign.Service
	previewer   Previewer
	sender      CampaignSender
	quota       SendQuota
}

// NewHandlers creates a new Handlers instance
func NewHandlers(subscribers *subscriber.Service, campaigns *campaign.Service, previewer Previewer, sender CampaignSender) *Handlers {
	return &Handlers{
		subscribers: subscribers,
		campaigns:   campaigns,
		previewer:   previewer,
		sender:      sender,
	}
}

// SetSendQuota adds send quota usage to the dashboard. Only throttled
// transports have one.
func (h *Handlers) SetSendQuota(q SendQuota) {
	h.quota = q
}
