package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/abearman/mindful-sub000/api/auth"
	"github.com/abearman/mindful-sub000/api/cors"
	"github.com/abearman/mindful-sub000/api/request"
	"github.com/abearman/mindful-sub000/models"
	"github.com/abearman/mindful-sub000/service"
	"go.uber.org/zap"
)

const DefaultTimeout = 10 * time.Second

var errMethodNotAllowed = errors.New("method not allowed")

type Handler struct {
	Service *service.Service
	Auth    *auth.Authenticator
	Cors    cors.Policy
	Timeout time.Duration
	Logger  *zap.Logger
}

func NewHandler(
	svc *service.Service,
	authenticator *auth.Authenticator,
	policy cors.Policy,
	timeout time.Duration,
	logger *zap.Logger,
) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: svc,
		Auth:    authenticator,
		Cors:    policy,
		Timeout: timeout,
		Logger:  logger,
	}
}

// dispatchFunc runs one authenticated operation and returns the success
// status and body.
type dispatchFunc func(ctx context.Context, userId string, req request.Request) (int, any, error)

// Serve routes a normalized request by the last segment of its path, so
// stage prefixes added by API Gateway do not matter.
func (h *Handler) Serve(ctx context.Context, req request.Request) request.Response {
	switch path.Base(strings.TrimRight(req.Path, "/")) {
	case "bookmarks":
		return h.serve(ctx, req, h.dispatchBookmarks)
	case "preferences":
		return h.serve(ctx, req, h.dispatchPreferences)
	}

	decision := cors.Decide(h.Cors, req.Origin)
	return errorResponse(decision.Headers, http.StatusNotFound, "Not found", "")
}

func (h *Handler) HandleBookmarks(w http.ResponseWriter, r *http.Request) {
	h.handleHTTP(w, r, h.dispatchBookmarks)
}

func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	h.handleHTTP(w, r, h.dispatchPreferences)
}

func (h *Handler) handleHTTP(w http.ResponseWriter, r *http.Request, dispatch dispatchFunc) {
	if refusal, refused := h.Guard(); refused {
		writeResponse(w, refusal)
		return
	}
	req, err := request.FromHTTP(r)
	if err != nil {
		decision := cors.Decide(h.Cors, r.Header.Get("Origin"))
		writeResponse(w, errorResponse(decision.Headers, http.StatusBadRequest, messageFor(service.CodeBadRequest), service.CodeBadRequest))
		return
	}
	writeResponse(w, h.serve(r.Context(), req, dispatch))
}

func (h *Handler) serve(ctx context.Context, req request.Request, dispatch dispatchFunc) request.Response {
	if refusal, refused := h.Guard(); refused {
		return refusal
	}

	decision := cors.Decide(h.Cors, req.Origin)
	if !decision.Allow {
		return errorResponse(decision.Headers, http.StatusForbidden, messageFor(service.CodeForbidden), service.CodeForbidden)
	}
	if req.Method == http.MethodOptions {
		return request.Response{StatusCode: http.StatusNoContent, Headers: decision.Headers}
	}

	userId, err := h.Auth.Resolve(req.UserId, req.Token)
	if err != nil {
		return errorResponse(decision.Headers, http.StatusUnauthorized, messageFor(service.CodeUnauthorized), service.CodeUnauthorized)
	}

	ctx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	status, body, err := dispatch(ctx, userId, req)
	if errors.Is(err, errMethodNotAllowed) {
		return errorResponse(decision.Headers, http.StatusMethodNotAllowed, "Method not allowed", "")
	}
	if err != nil {
		return h.failure(ctx, decision.Headers, userId, req.Method, err)
	}

	if body == nil {
		return request.Response{StatusCode: status, Headers: decision.Headers}
	}
	return jsonResponse(decision.Headers, status, body)
}

// Guard refuses every request with a 500 when production has no CORS
// allow-list. Adapters call it before reading the request.
func (h *Handler) Guard() (request.Response, bool) {
	if !h.Cors.Unconfigured() {
		return request.Response{}, false
	}
	h.Logger.Error("refusing request: no CORS allow-list configured in production")
	return errorResponse(nil, http.StatusInternalServerError, messageFor(service.CodeInternalError), service.CodeInternalError), true
}

func (h *Handler) failure(ctx context.Context, headers map[string]string, userId, method string, err error) request.Response {
	code := service.CodeOf(err)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		code = service.CodeInternalError
	}
	status := statusFor(code)

	fields := []zap.Field{
		zap.String("user_id", userId),
		zap.String("method", method),
		zap.String("code", string(code)),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed", fields...)
	} else {
		h.Logger.Warn("request rejected", fields...)
	}

	return errorResponse(headers, status, messageFor(code), code)
}

type saveResponse struct {
	Message     string `json:"message"`
	ContentHash string `json:"contentHash"`
}

func (h *Handler) dispatchBookmarks(ctx context.Context, userId string, req request.Request) (int, any, error) {
	switch req.Method {
	case http.MethodPost:
		result, err := h.Service.SaveBookmarks(ctx, userId, req.Body)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, saveResponse{Message: "Bookmarks saved", ContentHash: result.ContentHash}, nil

	case http.MethodGet:
		groups, err := h.Service.LoadBookmarks(ctx, userId)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, groups, nil

	case http.MethodDelete:
		if err := h.Service.DeleteBookmarks(ctx, userId); err != nil {
			return 0, nil, err
		}
		return http.StatusNoContent, nil, nil
	}
	return 0, nil, errMethodNotAllowed
}

type preferenceRequest struct {
	StorageType string `json:"storageType"`
}

type preferenceResponse struct {
	StorageType models.StorageType `json:"storageType"`
	Found       bool               `json:"found"`
}

func (h *Handler) dispatchPreferences(ctx context.Context, userId string, req request.Request) (int, any, error) {
	switch req.Method {
	case http.MethodGet:
		storageType, found, err := h.Service.GetPreference(ctx, userId)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, preferenceResponse{StorageType: storageType, Found: found}, nil

	case http.MethodPut:
		var body preferenceRequest
		if err := json.Unmarshal(req.Body, &body); err != nil {
			return 0, nil, service.ErrBadRequest
		}
		storageType, err := h.Service.SetPreference(ctx, userId, body.StorageType)
		if err != nil {
			return 0, nil, err
		}
		return http.StatusOK, preferenceResponse{StorageType: storageType, Found: true}, nil
	}
	return 0, nil, errMethodNotAllowed
}

func statusFor(code service.ErrorCode) int {
	switch code {
	case service.CodeUnauthorized:
		return http.StatusUnauthorized
	case service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeBadRequest:
		return http.StatusBadRequest
	case service.CodeAuthTagMismatch:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// messageFor never includes error detail. The code is the only structured
// information a caller gets.
func messageFor(code service.ErrorCode) string {
	switch code {
	case service.CodeUnauthorized:
		return "Unauthorized"
	case service.CodeForbidden:
		return "Origin not allowed"
	case service.CodeBadRequest:
		return "Invalid request body"
	case service.CodeAuthTagMismatch:
		return "Stored bookmarks could not be verified"
	}
	return "Internal server error"
}
