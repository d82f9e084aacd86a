package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mountpass/internal/passes/models"
	"mountpass/internal/passes/service"
	"mountpass/internal/platform/metrics"
	"mountpass/internal/platform/middleware"
	dErrors "mountpass/pkg/domain-errors"
	"mountpass/pkg/platform/httputil"
	"mountpass/pkg/platform/middleware/metadata"
	request "mountpass/pkg/platform/middleware/request"
	"mountpass/pkg/platform/middleware/requesttime"
)

const (
	msgSubmitted      = "submitted successfully"
	msgInvalidRequest = "invalid request"
	msgServerError    = "server error"
	msgUpdated        = "record updated successfully"
	msgStatusUpdated  = "status updated successfully"
	msgPassNotFound   = "pass not found"
	msgInvalidID      = "invalid pass id"

	headerTotalCount = "X-Total-Count"
)

// Service defines the pass operations the handler needs.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (*models.Pass, error)
	Update(ctx context.Context, id int64, in service.UpdateInput) (*models.Pass, error)
	SetStatus(ctx context.Context, id int64, status models.Status) (*models.Pass, error)
	Get(ctx context.Context, id int64) (*models.Pass, error)
	ListByEmail(ctx context.Context, email string, filter models.ListFilter) ([]*models.Pass, int, error)
}

// Handler serves /api/submitData.
type Handler struct {
	service   Service
	urls      URLBuilder
	logger    *slog.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	submitMW  []func(http.Handler) http.Handler
	moderator []func(http.Handler) http.Handler
}

type Option func(*Handler)

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.timeout = d
	}
}

// WithSubmitMiddleware guards submissions, e.g. with a rate limiter.
func WithSubmitMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMW = append(h.submitMW, mw...)
	}
}

// WithModeratorMiddleware guards the status endpoint.
func WithModeratorMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.moderator = append(h.moderator, mw...)
	}
}

// New creates a pass Handler.
func New(svc Service, urls URLBuilder, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		service: svc,
		urls:    urls,
		logger:  logger,
		metrics: m,
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the pass routes. Trailing slashes are optional.
func (h *Handler) Register(r chi.Router) {
	passRouter := chi.NewRouter()
	passRouter.Use(request.Recovery(h.logger))
	passRouter.Use(request.RequestID)
	passRouter.Use(metadata.ClientMetadata)
	passRouter.Use(requesttime.Middleware)
	passRouter.Use(request.Logger(h.logger))
	passRouter.Use(request.Timeout(h.timeout))
	passRouter.Use(request.ContentTypeJSON)
	passRouter.Use(middleware.LatencyMiddleware(h.metrics))
	passRouter.Use(chimw.StripSlashes)

	passRouter.With(h.submitMW...).Post("/", h.handleCreate)
	passRouter.Get("/", h.handleList)
	passRouter.Get("/user_passes", h.handleList)
	passRouter.Get("/{id}", h.handleGet)
	passRouter.Patch("/{id}", h.handleUpdate)
	passRouter.With(h.moderator...).Patch("/{id}/status", h.handleSetStatus)

	r.Mount("/api/submitData", passRouter)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	var req PassRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		h.logger.WarnContext(ctx, "invalid submission body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusBadRequest, CreateResponse{
			Status:  http.StatusBadRequest,
			Message: msgInvalidRequest,
			Errors:  map[string][]string{"non_field_errors": {dErrors.MessageOf(err)}},
		})
		return
	}

	pass, err := h.create(ctx, &req)
	if err != nil {
		if isClientError(err) {
			h.logger.WarnContext(ctx, "submission rejected",
				"request_id", requestID,
				"error", err,
			)
			httputil.WriteJSON(w, http.StatusBadRequest, CreateResponse{
				Status:  http.StatusBadRequest,
				Message: msgInvalidRequest,
				Errors:  fieldErrors(err),
			})
			return
		}
		h.logger.ErrorContext(ctx, "failed to submit pass",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, CreateResponse{
			Status:  http.StatusInternalServerError,
			Message: msgServerError,
			Error:   err.Error(),
		})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, CreateResponse{
		Status:  http.StatusOK,
		Message: msgSubmitted,
		ID:      &pass.ID,
	})
}

func (h *Handler) create(ctx context.Context, req *PassRequest) (*models.Pass, error) {
	in, err := req.ToCreate()
	if err != nil {
		return nil, err
	}
	return h.service.Create(ctx, in)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	id, ok := parseID(r)
	if !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, StateResponse{Message: msgInvalidID})
		return
	}

	var req PassRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, StateResponse{Message: dErrors.MessageOf(err)})
		return
	}
	in, err := req.ToUpdate()
	if err == nil {
		_, err = h.service.Update(ctx, id, in)
	}
	if err != nil {
		h.writeStateError(ctx, w, err, "failed to update pass")
		return
	}

	h.logger.InfoContext(ctx, "pass edited",
		"request_id", requestID,
		"pass_id", id,
	)
	httputil.WriteJSON(w, http.StatusOK, StateResponse{State: 1, Message: msgUpdated})
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseID(r)
	if !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, StateResponse{Message: msgInvalidID})
		return
	}

	var req StatusRequest
	if err := httputil.DecodeJSON(w, r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, StateResponse{Message: dErrors.MessageOf(err)})
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err == nil {
		_, err = h.service.SetStatus(ctx, id, status)
	}
	if err != nil {
		h.writeStateError(ctx, w, err, "failed to update pass status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, StateResponse{State: 1, Message: msgStatusUpdated})
}

func (h *Handler) writeStateError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	requestID := request.GetRequestID(ctx)
	switch {
	case dErrors.CodeOf(err) == dErrors.CodeNotFound:
		httputil.WriteJSON(w, http.StatusNotFound, StateResponse{Message: dErrors.MessageOf(err)})
	case isClientError(err):
		h.logger.WarnContext(ctx, logMsg,
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusBadRequest, StateResponse{
			Message: dErrors.MessageOf(err),
			Errors:  fieldErrors(err),
		})
	default:
		h.logger.ErrorContext(ctx, logMsg,
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, StateResponse{Message: err.Error()})
	}
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := parseID(r)
	if !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: msgInvalidID})
		return
	}
	pass, err := h.service.Get(ctx, id)
	if err != nil {
		h.writeLookupError(ctx, w, err, "failed to load pass")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewPassResponse(pass, h.urls))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	email := strings.TrimSpace(q.Get("user__email"))
	if email == "" {
		email = strings.TrimSpace(q.Get("email"))
	}
	filter, err := parseListFilter(q.Get("status"), q.Get("limit"), q.Get("offset"))
	if err == nil && email == "" {
		err = dErrors.New(dErrors.CodeBadRequest, "email parameter is required")
	}
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: dErrors.MessageOf(err)})
		return
	}

	passes, total, err := h.service.ListByEmail(ctx, email, filter)
	if err != nil {
		h.writeLookupError(ctx, w, err, "failed to list passes")
		return
	}
	w.Header().Set(headerTotalCount, strconv.Itoa(total))
	httputil.WriteJSON(w, http.StatusOK, toPassListResponse(passes, h.urls))
}

func (h *Handler) writeLookupError(ctx context.Context, w http.ResponseWriter, err error, logMsg string) {
	switch {
	case dErrors.CodeOf(err) == dErrors.CodeNotFound:
		httputil.WriteJSON(w, http.StatusNotFound, ErrorResponse{Error: dErrors.MessageOf(err)})
	case isClientError(err):
		httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: dErrors.MessageOf(err)})
	default:
		h.logger.ErrorContext(ctx, logMsg,
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func parseID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseListFilter(status, limit, offset string) (models.ListFilter, error) {
	var filter models.ListFilter
	if status != "" {
		s, err := models.ParseStatus(status)
		if err != nil {
			return filter, dErrors.New(dErrors.CodeBadRequest, "invalid status filter")
		}
		filter.Status = s
	}
	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
		}
		filter.Limit = n
	}
	if offset != "" {
		n, err := strconv.Atoi(offset)
		if err != nil || n < 0 {
			return filter, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter.Normalized(), nil
}

func isClientError(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return true
	}
	return false
}

func fieldErrors(err error) map[string][]string {
	fields := dErrors.FieldsOf(err)
	if len(fields) == 0 {
		return map[string][]string{"non_field_errors": {dErrors.MessageOf(err)}}
	}
	return fields
}
