package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/campaign-mailer/internal/domain"
	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
)

type subscribeRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// HandleSubscribe adds an email to the list, or reactivates a previously
// unsubscribed one.
//
//	POST /subscribe
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	res, err := h.subscribers.Subscribe(r.Context(), req.Email, req.Name)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if res.Reactivated {
		httputil.OK(w, map[string]interface{}{
			"message":    "Welcome back! Your subscription has been reactivated.",
			"subscriber": res.Subscriber,
		})
		return
	}
	httputil.Created(w, map[string]interface{}{
		"message":    "Successfully subscribed to the newsletter.",
		"subscriber": res.Subscriber,
	})
}

// HandleUnsubscribe processes a one-click unsubscribe link. Repeating it is
// harmless.
//
//	GET /unsubscribe/{token}
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	email, err := h.subscribers.Unsubscribe(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, map[string]string{
		"message": "You have been unsubscribed and will no longer receive campaign emails.",
		"email":   email,
	})
}

// HandleSubscriberCount returns the number of active subscribers.
//
//	GET /api/subscribers/count
func (h *Handlers) HandleSubscriberCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.subscribers.CountActive(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	httputil.OK(w, map[string]int{"count": n})
}

// HandleListSubscribers lists subscribers newest first.
//
//	GET /api/subscribers?status=&limit=&offset=
func (h *Handlers) HandleListSubscribers(w http.ResponseWriter, r *http.Request) {
	status := domain.SubscriberStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.SubscriberActive, domain.SubscriberUnsubscribed:
	default:
		httputil.BadRequest(w, "status must be active or unsubscribed")
		return
	}

	page := ParsePagination(r, 50, 500)
	subs, total, err := h.subscribers.List(r.Context(), subscriber.ListFilter{
		Status: status,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if subs == nil {
		subs = []domain.Subscriber{}
	}
	httputil.OK(w, NewPaginatedResponse(subs, page, total))
}
