package api

import (
	"errors"
	"net/http"

	"github.com/ignite/campaign-mailer/internal/pkg/httputil"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/service/campaign"
	"github.com/ignite/campaign-mailer/internal/service/subscriber"
	"github.com/ignite/campaign-mailer/internal/tracking"
	"github.com/ignite/campaign-mailer/internal/worker"
)

// writeServiceError maps service-layer errors to HTTP responses. Anything
// unrecognized is a 500 with a generic body.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *campaign.ValidationError
	switch {
	case errors.As(err, &verr):
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error(),
			map[string]string{"field": verr.Field, "message": verr.Message})
	case errors.Is(err, campaign.ErrValidation):
		httputil.ErrorWithCode(w, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	case errors.Is(err, campaign.ErrNotFound), errors.Is(err, subscriber.ErrNotFound):
		httputil.NotFound(w, err.Error())
	case errors.Is(err, campaign.ErrInvalidState):
		httputil.ErrorWithCode(w, http.StatusConflict, "invalid_state", err.Error(), nil)
	case errors.Is(err, subscriber.ErrDuplicate):
		httputil.ErrorWithCode(w, http.StatusConflict, "already_subscribed", "this email is already subscribed", nil)
	case errors.Is(err, subscriber.ErrInvalidEmail), errors.Is(err, subscriber.ErrInvalidName):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, tracking.ErrInvalidToken):
		httputil.BadRequest(w, "invalid unsubscribe link")
	case errors.Is(err, worker.ErrQueueFull), errors.Is(err, worker.ErrNotRunning):
		httputil.Error(w, http.StatusServiceUnavailable, err.Error())
	default:
		logger.With(r.Context(), "path", r.URL.Path).Error("request failed", "error", err)
		httputil.InternalError(w, err)
	}
}
