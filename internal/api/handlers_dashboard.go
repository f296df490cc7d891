package api

import (
	"net/http"

	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
)

// DashboardResponse is the admin overview.
type DashboardResponse struct {
	Subscribers *subscriber.Stats `json:"subscribers"`
	Campaigns   *campaign.Stats   `json:"campaigns"`
	Processor   map[string]int64  `json:"processor,omitempty"`
	SendQuota   map[string]int64  `json:"send_quota,omitempty"`
}

// HandleDashboard returns subscriber and campaign totals, processor stats
// and, when sends are throttled, quota usage.
//
//	GET /api/dashboard
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	camps, err := h.campaigns.GetStats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	resp := DashboardResponse{Subscribers: subs, Campaigns: camps}
	if h.sender != nil {
		resp.Processor = h.sender.Stats()
	}
	if h.quota != nil {
		usage, err := h.quota.Usage(r.Context())
		if err != nil {
			logger.With(r.Context()).Warn("send quota unavailable", "error", err)
		} else {
			resp.SendQuota = usage
		}
	}
	httputil.OK(w, resp)
}
