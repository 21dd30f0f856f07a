package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"mortgage-criteria-chat/internal/domain"
	"mortgage-criteria-chat/internal/integrations/backend"
	"mortgage-criteria-chat/internal/usecase"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSessionID     = "X-Session-Id"

	healthTimeout = 5 * time.Second
)

const (
	errInvalidInput     = "INVALID_INPUT"
	errEmptyMessage     = "EMPTY_MESSAGE"
	errSessionBusy      = "SESSION_BUSY"
	errNotFound         = "NOT_FOUND"
	errMethodNotAllowed = "METHOD_NOT_ALLOWED"
	errUpstream         = "UPSTREAM_ERROR"
	errInternal         = "INTERNAL_ERROR"
)

var exampleQueries = []string{
	"maximum age for mortgage applications",
	"LTV limits for first time buyers",
	"income requirements for self employed",
	"minimum deposit requirements",
	"foreign national mortgage criteria",
	"buy to let mortgage rules",
}

type Sessions interface {
	Get(ctx context.Context, id string) (Session, error)
}

type HealthChecker interface {
	Health(ctx context.Context) (backend.HealthStatus, error)
}

type Handler struct {
	sessions Sessions
	health   HealthChecker
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func NewHandler(sessions Sessions, health HealthChecker, opts ...Option) (*Handler, error) {
	if sessions == nil {
		return nil, errors.New("handler: sessions must not be nil")
	}
	if health == nil {
		return nil, errors.New("handler: health checker must not be nil")
	}
	h := &Handler{sessions: sessions, health: health, logger: slog.Default()}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

type chatRequest struct {
	Message string `json:"message"`
}

type parametersRequest struct {
	LenderFilter *string `json:"lender_filter"`
	NumResults   *int    `json:"num_results"`
}

type sessionResponse struct {
	SessionID     string                    `json:"session_id"`
	Messages      []domain.ChatTurn         `json:"messages"`
	SearchResults []domain.SupportingResult `json:"search_results"`
	LenderFilter  string                    `json:"lender_filter,omitempty"`
	NumResults    int                       `json:"num_results"`
	Busy          bool                      `json:"busy"`
}

type chatResponse struct {
	sessionResponse
	Outcome domain.Outcome `json:"outcome"`
}

type lendersResponse struct {
	Lenders []string `json:"lenders"`
	Source  string   `json:"source"`
}

type examplesResponse struct {
	Examples []string `json:"examples"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Handle routes one API Gateway proxy request. Errors are always rendered as
// JSON responses; the returned error is reserved for the Lambda runtime.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	path := normalizePath(event.Path)
	logger := h.logger.With("correlation_id", correlationID, "method", event.HTTPMethod, "path", path)

	resp := h.route(ctx, logger, event, path)
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers[headerCorrelationID] = correlationID
	logger.Info("request handled", "status", resp.StatusCode)
	return resp, nil
}

func (h *Handler) route(ctx context.Context, logger *slog.Logger, event events.APIGatewayProxyRequest, path string) events.APIGatewayProxyResponse {
	method := strings.ToUpper(event.HTTPMethod)

	switch path {
	case "/health":
		if method != http.MethodGet {
			return errorJSON(http.StatusMethodNotAllowed, errMethodNotAllowed, "")
		}
		return h.handleHealth(ctx, logger)
	case "/examples":
		if method != http.MethodGet {
			return errorJSON(http.StatusMethodNotAllowed, errMethodNotAllowed, "")
		}
		return jsonResponse(http.StatusOK, examplesResponse{Examples: append([]string(nil), exampleQueries...)})
	case "/chat", "/session", "/session/parameters", "/lenders":
	default:
		return errorJSON(http.StatusNotFound, errNotFound, "")
	}

	if !allowed(path, method) {
		return errorJSON(http.StatusMethodNotAllowed, errMethodNotAllowed, "")
	}

	s, err := h.sessions.Get(ctx, headerValue(event.Headers, headerSessionID))
	if err != nil {
		logger.Error("failed to load session", "err", err)
		return errorJSON(http.StatusInternalServerError, errInternal, "")
	}

	var resp events.APIGatewayProxyResponse
	switch path {
	case "/chat":
		resp = h.handleChat(ctx, logger, s, event.Body)
	case "/session":
		if method == http.MethodDelete {
			s.ClearSession()
		}
		resp = jsonResponse(http.StatusOK, toSessionResponse(s.View()))
	case "/session/parameters":
		resp = h.handleParameters(s, event.Body)
	case "/lenders":
		dir := s.View().Directory
		source := "backend"
		if dir.Fallback {
			source = "fallback"
		}
		resp = jsonResponse(http.StatusOK, lendersResponse{Lenders: append([]string(nil), dir.Names...), Source: source})
	}
	resp.Headers[headerSessionID] = s.SessionID()
	return resp
}

func allowed(path, method string) bool {
	switch path {
	case "/chat":
		return method == http.MethodPost
	case "/session":
		return method == http.MethodGet || method == http.MethodDelete
	case "/session/parameters":
		return method == http.MethodPut
	case "/lenders":
		return method == http.MethodGet
	}
	return false
}

func (h *Handler) handleChat(ctx context.Context, logger *slog.Logger, s Session, body string) events.APIGatewayProxyResponse {
	var req chatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errorJSON(http.StatusBadRequest, errInvalidInput, "body must be JSON with a message field")
	}

	res := s.Submit(ctx, req.Message)
	switch res.Status {
	case usecase.SubmitRejectedEmpty:
		return errorJSON(http.StatusBadRequest, errEmptyMessage, "message must not be empty")
	case usecase.SubmitRejectedBusy:
		logger.Info("chat submission dropped", "session_id", s.SessionID())
		return errorJSON(http.StatusConflict, errSessionBusy, "an exchange is already in progress")
	}
	return jsonResponse(http.StatusOK, chatResponse{
		sessionResponse: toSessionResponse(s.View()),
		Outcome:         res.Exchange.Outcome,
	})
}

func (h *Handler) handleParameters(s Session, body string) events.APIGatewayProxyResponse {
	var req parametersRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return errorJSON(http.StatusBadRequest, errInvalidInput, "body must be JSON")
	}

	params := s.View().Parameters
	params.LenderFilter = ""
	if req.LenderFilter != nil {
		params.LenderFilter = *req.LenderFilter
	}
	if req.NumResults != nil {
		params.ResultCount = *req.NumResults
	}
	s.SetParameters(params)
	return jsonResponse(http.StatusOK, toSessionResponse(s.View()))
}

func (h *Handler) handleHealth(ctx context.Context, logger *slog.Logger) events.APIGatewayProxyResponse {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	status, err := h.health.Health(ctx)
	if err != nil {
		logger.Warn("backend health check failed", "err", err)
		return errorJSON(http.StatusBadGateway, errUpstream, "backend is unreachable")
	}
	return jsonResponse(http.StatusOK, status)
}

func toSessionResponse(v usecase.View) sessionResponse {
	out := sessionResponse{
		SessionID:     v.SessionID,
		Messages:      v.Turns,
		SearchResults: v.Results,
		LenderFilter:  v.Parameters.LenderFilter,
		NumResults:    v.Parameters.ResultCount,
		Busy:          v.Busy,
	}
	if out.Messages == nil {
		out.Messages = []domain.ChatTurn{}
	}
	if out.SearchResults == nil {
		out.SearchResults = []domain.SupportingResult{}
	}
	return out
}

func headerValue(headers map[string]string, key string) string {
	if v, ok := headers[key]; ok {
		return strings.TrimSpace(v)
	}
	for k, v := range headers {
		if strings.EqualFold(k, key) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

func jsonResponse(status int, v any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"error":"` + errInternal + `"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

func errorJSON(status int, code, message string) events.APIGatewayProxyResponse {
	return jsonResponse(status, errorResponse{Error: code, Message: message})
}
