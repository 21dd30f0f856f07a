package usecase

import (
	"context"
	"errors"
	"strings"

	"mortgage-criteria-chat/internal/domain"
	"mortgage-criteria-chat/internal/integrations/backend"
)

type ChatBackend interface {
	Chat(ctx context.Context, in backend.ChatRequest) (backend.ChatResponse, error)
}

// ChatOutcome is a successful backend reply.
type ChatOutcome struct {
	ResponseText      string
	SupportingResults []domain.SupportingResult
}

// Dispatcher turns one utterance plus session state into a single backend
// call and classifies the result. It never retries.
type Dispatcher struct {
	backend ChatBackend
}

func NewDispatcher(b ChatBackend) (*Dispatcher, error) {
	if b == nil {
		return nil, errors.New("usecase: chat backend must not be nil")
	}
	return &Dispatcher{backend: b}, nil
}

// Send posts history (which already ends with the user's turn) together with
// the raw utterance and params. Failures are always *Error.
func (d *Dispatcher) Send(ctx context.Context, history []domain.ChatTurn, utterance string, params domain.SearchParameters) (ChatOutcome, error) {
	params = params.Normalize()
	req := backend.ChatRequest{
		Messages:     append([]domain.ChatTurn{}, history...),
		Query:        utterance,
		LenderFilter: params.LenderFilter,
		NumResults:   params.ResultCount,
	}

	resp, err := d.backend.Chat(ctx, req)
	if err != nil {
		return ChatOutcome{}, classify(err)
	}
	if msg := strings.TrimSpace(resp.Error); msg != "" {
		e := newError(ErrorApplication, "backend_error_field", nil)
		e.Message = msg
		return ChatOutcome{}, e
	}

	results := resp.SearchResults
	if results == nil {
		results = []domain.SupportingResult{}
	}
	return ChatOutcome{ResponseText: resp.Response, SupportingResults: results}, nil
}

func classify(err error) *Error {
	var statusErr *backend.HTTPStatusError
	if errors.As(err, &statusErr) {
		e := newError(ErrorBackendStatus, "non_success_status", err)
		e.Status = statusErr.HTTPStatusCode()
		e.Message = statusErr.Message
		return e
	}
	if errors.Is(err, backend.ErrMalformedResponse) {
		return newError(ErrorTransport, "malformed_response", err)
	}
	return newError(ErrorTransport, "request_failed", err)
}
