package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
)

// HandleCreateCampaign creates a draft campaign.
//
//	POST /api/campaigns
func (h *Handlers) HandleCreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}
	c, err := h.campaigns.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.Created(w, c)
}

// HandleListCampaigns lists campaigns newest first.
//
//	GET /api/campaigns?status=&limit=&offset=
func (h *Handlers) HandleListCampaigns(w http.ResponseWriter, r *http.Request) {
	status := domain.CampaignStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.CampaignDraft, domain.CampaignSending, domain.CampaignSent, domain.CampaignFailed:
	default:
		httputil.BadRequest(w, "unknown campaign status")
		return
	}

	page := ParsePagination(r, 50, 200)
	list, total, err := h.campaigns.List(r.Context(), campaign.ListFilter{
		Status: status,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	httputil.OK(w, NewPaginatedResponse(list, page, total))
}

// HandleGetCampaign returns one campaign.
//
//	GET /api/campaigns/{id}
func (h *Handlers) HandleGetCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, c)
}

// HandleDeleteCampaign removes a draft campaign.
//
//	DELETE /api/campaigns/{id}
func (h *Handlers) HandleDeleteCampaign(w http.ResponseWriter, r *http.Request) {
	if err := h.campaigns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.NoContent(w)
}

// HandlePreviewCampaign renders the campaign HTML for a placeholder
// recipient.
//
//	GET /api/campaigns/{id}/preview
func (h *Handlers) HandlePreviewCampaign(w http.ResponseWriter, r *http.Request) {
	c, err := h.campaigns.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	html, err := h.previewer.Render(c.TemplateID, c, &domain.Subscriber{
		Email:  previewEmail,
		Status: domain.SubscriberActive,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// HandleSendCampaign sends a draft campaign. With async=true the dispatch
// runs on the background processor and the response is 202.
//
//	POST /api/campaigns/{id}/send
func (h *Handlers) HandleSendCampaign(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	log := logger.With(r.Context(), "campaign_id", id)

	if r.URL.Query().Get("async") == "true" {
		c, err := h.sender.Enqueue(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		log.Info("campaign send queued")
		httputil.Accepted(w, map[string]interface{}{
			"message":  "Campaign queued for sending",
			"campaign": c,
		})
		return
	}

	res, err := h.sender.Process(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	log.Info("campaign send finished", "status", res.Campaign.Status, "attempted", res.Result.Attempted)
	httputil.OK(w, res)
}
