// Package handler exposes the name request operations over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"namex/internal/events"
	idmiddleware "namex/internal/identity/middleware"
	idmodels "namex/internal/identity/models"
	"namex/internal/namerequest/models"
	"namex/internal/namerequest/service"
	"namex/internal/namerequest/validation"
	"namex/pkg/domain"
	dErrors "namex/pkg/domain-errors"
	"namex/pkg/platform/httputil"
	"namex/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler_mocks.go -package=mocks Service

// Service is the subset of the name request engine the handlers call.
type Service interface {
	Get(ctx context.Context, id domain.RequestID) (*service.Result, error)
	GetByNR(ctx context.Context, nrNum domain.NRNumber) (*service.Result, error)
	Replace(ctx context.Context, actor *idmodels.User, id domain.RequestID, p *validation.PutPayload) (*service.Result, error)
	Patch(ctx context.Context, actor *idmodels.User, id domain.RequestID, action string, p *validation.PatchPayload) (*service.Result, error)
	Rollback(ctx context.Context, actor *idmodels.User, id domain.RequestID, action string) (*service.Result, error)
	ChangeState(ctx context.Context, actor *idmodels.User, nrNum domain.NRNumber, p *validation.StateChangePayload) (*service.Result, error)
	EditName(ctx context.Context, actor *idmodels.User, nrNum domain.NRNumber, choice int, p *validation.NamePatch) (*service.Result, error)
	AddComment(ctx context.Context, actor *idmodels.User, nrNum domain.NRNumber, p *validation.CommentPost) (*models.Comment, error)
	History(ctx context.Context, nrNum domain.NRNumber) (*events.History, error)
	GetEvent(ctx context.Context, id domain.EventID) (*events.Event, error)
	ResendNotification(ctx context.Context, actor *idmodels.User, id domain.EventID) (*events.Event, error)
}

// Handler serves the /requests and /events routes.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(svc Service, logger *slog.Logger) (*Handler, error) {
	if svc == nil {
		return nil, errors.New("name request service is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}, nil
}

// Register adds the routes to r. Authentication and user resolution are
// expected to run before these handlers.
func (h *Handler) Register(r chi.Router) {
	r.Route("/requests/{key}", func(r chi.Router) {
		r.Get("/", h.handleGet)
		r.Put("/", h.handleReplace)
		r.Patch("/", h.handleChangeState)
		r.Patch("/{action}", h.handlePatch)
		r.Patch("/rollback/{action}", h.handleRollback)
		r.Patch("/names/{choice}", h.handleEditName)
		r.Post("/comments", h.handleAddComment)
	})
	r.Get("/events/{nrNum}", h.handleHistory)
	r.Get("/events/id/{eventID}", h.handleGetEvent)
	r.Post("/events/id/{eventID}/resend", h.handleResend)
}

// requestResponse is the full request with the actions valid for its state.
type requestResponse struct {
	*models.NameRequest
	Actions []models.ClientAction `json:"actions"`
	Refund  *service.RefundResult `json:"refund,omitempty"`
}

func (h *Handler) writeResult(w http.ResponseWriter, res *service.Result) {
	if res.Minimal {
		httputil.WriteJSON(w, http.StatusOK, res.LockView())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, requestResponse{
		NameRequest: res.Request,
		Actions:     res.Actions,
		Refund:      res.Refund,
	})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	key := chi.URLParam(r, "key")

	var (
		res *service.Result
		err error
	)
	if id, parseErr := domain.ParseRequestID(key); parseErr == nil {
		res, err = h.service.Get(ctx, id)
	} else {
		nrNum, nrErr := domain.ParseNRNumber(key)
		if nrErr != nil {
			h.fail(ctx, w, "get", nrErr)
			return
		}
		res, err = h.service.GetByNR(ctx, nrNum)
	}
	if err != nil {
		h.fail(ctx, w, "get", err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handleReplace(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, id, ok := h.actorAndID(w, r, "put")
	if !ok {
		return
	}
	var payload validation.PutPayload
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		h.fail(ctx, w, "put", err)
		return
	}
	res, err := h.service.Replace(ctx, actor, id, &payload)
	if err != nil {
		h.fail(ctx, w, "put", err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action := chi.URLParam(r, "action")
	actor, id, ok := h.actorAndID(w, r, action)
	if !ok {
		return
	}
	var payload *validation.PatchPayload
	if hasBody(r) {
		payload = &validation.PatchPayload{}
		if err := httputil.DecodeJSON(r, payload); err != nil {
			h.fail(ctx, w, action, err)
			return
		}
	}
	res, err := h.service.Patch(ctx, actor, id, action, payload)
	if err != nil {
		h.fail(ctx, w, action, err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handleRollback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	action := chi.URLParam(r, "action")
	actor, id, ok := h.actorAndID(w, r, "rollback")
	if !ok {
		return
	}
	res, err := h.service.Rollback(ctx, actor, id, action)
	if err != nil {
		h.fail(ctx, w, "rollback", err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handleChangeState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, nrNum, ok := h.actorAndNR(w, r, "key", "state change")
	if !ok {
		return
	}
	var payload validation.StateChangePayload
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		h.fail(ctx, w, "state change", err)
		return
	}
	res, err := h.service.ChangeState(ctx, actor, nrNum, &payload)
	if err != nil {
		h.fail(ctx, w, "state change", err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handleEditName(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, nrNum, ok := h.actorAndNR(w, r, "key", "edit name")
	if !ok {
		return
	}
	choice, err := strconv.Atoi(chi.URLParam(r, "choice"))
	if err != nil || choice < 1 || choice > 3 {
		h.fail(ctx, w, "edit name", dErrors.New(dErrors.CodeInvalidInput, "name choice must be 1, 2 or 3"))
		return
	}
	var payload validation.NamePatch
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		h.fail(ctx, w, "edit name", err)
		return
	}
	res, err := h.service.EditName(ctx, actor, nrNum, choice, &payload)
	if err != nil {
		h.fail(ctx, w, "edit name", err)
		return
	}
	h.writeResult(w, res)
}

func (h *Handler) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, nrNum, ok := h.actorAndNR(w, r, "key", "comment")
	if !ok {
		return
	}
	var payload validation.CommentPost
	if err := httputil.DecodeJSON(r, &payload); err != nil {
		h.fail(ctx, w, "comment", err)
		return
	}
	comment, err := h.service.AddComment(ctx, actor, nrNum, &payload)
	if err != nil {
		h.fail(ctx, w, "comment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nrNum, err := domain.ParseNRNumber(chi.URLParam(r, "nrNum"))
	if err != nil {
		h.fail(ctx, w, "history", err)
		return
	}
	history, err := h.service.History(ctx, nrNum)
	if err != nil {
		h.fail(ctx, w, "history", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, history)
}

func (h *Handler) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(ctx, w, "get event", err)
		return
	}
	event, err := h.service.GetEvent(ctx, id)
	if err != nil {
		h.fail(ctx, w, "get event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor, ok := h.actor(w, r, "resend")
	if !ok {
		return
	}
	id, err := domain.ParseEventID(chi.URLParam(r, "eventID"))
	if err != nil {
		h.fail(ctx, w, "resend", err)
		return
	}
	event, err := h.service.ResendNotification(ctx, actor, id)
	if err != nil {
		h.fail(ctx, w, "resend", err)
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, event)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request, op string) (*idmodels.User, bool) {
	actor := idmiddleware.UserFrom(r.Context())
	if actor == nil {
		h.logger.ErrorContext(r.Context(), "user missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
			"operation", op,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return nil, false
	}
	return actor, true
}

func (h *Handler) actorAndID(w http.ResponseWriter, r *http.Request, op string) (*idmodels.User, domain.RequestID, bool) {
	actor, ok := h.actor(w, r, op)
	if !ok {
		return nil, 0, false
	}
	id, err := domain.ParseRequestID(chi.URLParam(r, "key"))
	if err != nil {
		h.fail(r.Context(), w, op, err)
		return nil, 0, false
	}
	return actor, id, true
}

func (h *Handler) actorAndNR(w http.ResponseWriter, r *http.Request, param, op string) (*idmodels.User, domain.NRNumber, bool) {
	actor, ok := h.actor(w, r, op)
	if !ok {
		return nil, "", false
	}
	nrNum, err := domain.ParseNRNumber(chi.URLParam(r, param))
	if err != nil {
		h.fail(r.Context(), w, op, err)
		return nil, "", false
	}
	return actor, nrNum, true
}

// fail logs and writes err. Client errors are logged at warn, the rest at error.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	status := httputil.StatusFor(dErrors.CodeOf(err))
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"operation", op,
		"status", status,
		"error", err,
	}
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "name request operation failed", attrs...)
	} else {
		h.logger.WarnContext(ctx, "name request operation rejected", attrs...)
	}
	httputil.WriteError(w, err)
}

// hasBody reports whether the request carries a payload. PATCH checkout and
// checkin are commonly sent without one.
func hasBody(r *http.Request) bool {
	return r.Body != nil && r.Body != http.NoBody && r.ContentLength != 0
}
