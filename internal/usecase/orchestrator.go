package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mortgage-criteria-chat/internal/domain"
	"mortgage-criteria-chat/internal/session"
)

const errorReplyPrefix = "Sorry, I encountered an error: "

type Sender interface {
	Send(ctx context.Context, history []domain.ChatTurn, utterance string, params domain.SearchParameters) (ChatOutcome, error)
}

// ExchangeRecorder archives settled exchanges.
type ExchangeRecorder interface {
	RecordExchange(ctx context.Context, ex domain.Exchange) error
}

type ExchangeObserver interface {
	ObserveExchange(outcome domain.Outcome, d time.Duration)
}

type SubmitStatus int

const (
	SubmitAccepted SubmitStatus = iota
	SubmitRejectedEmpty
	SubmitRejectedBusy
)

func (s SubmitStatus) String() string {
	switch s {
	case SubmitAccepted:
		return "accepted"
	case SubmitRejectedEmpty:
		return "rejected_empty"
	case SubmitRejectedBusy:
		return "rejected_busy"
	default:
		return fmt.Sprintf("SubmitStatus(%d)", int(s))
	}
}

// SubmitResult reports what Submit did. Exchange is only set when the
// submission was accepted.
type SubmitResult struct {
	Status   SubmitStatus
	Exchange domain.Exchange
}

// View is the read-only session state handed to presentation.
type View struct {
	SessionID string
	Directory domain.LenderDirectory
	session.Snapshot
}

// Orchestrator owns one chat session. At most one exchange is in flight; a
// submission made while busy is dropped. An in-flight exchange cannot be
// cancelled: it always runs to completion and settles the session.
type Orchestrator struct {
	id        string
	state     *session.State
	directory domain.LenderDirectory
	sender    Sender
	recorder  ExchangeRecorder
	observer  ExchangeObserver
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Orchestrator)

func WithSessionID(id string) Option {
	return func(o *Orchestrator) {
		if id = strings.TrimSpace(id); id != "" {
			o.id = id
		}
	}
}

func WithRecorder(r ExchangeRecorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

func WithObserver(obs ExchangeObserver) Option {
	return func(o *Orchestrator) {
		o.observer = obs
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator starts an empty session over directory with the given
// initial parameters.
func NewOrchestrator(sender Sender, directory domain.LenderDirectory, params domain.SearchParameters, opts ...Option) (*Orchestrator, error) {
	if sender == nil {
		return nil, errors.New("usecase: sender must not be nil")
	}
	if len(directory.Names) == 0 || !domain.IsAllLenders(directory.Names[0]) {
		return nil, errors.New("usecase: lender directory must start with the all-lenders entry")
	}
	o := &Orchestrator{
		id:        newUUID(),
		state:     session.New(params),
		directory: directory,
		sender:    sender,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("session_id", o.id)
	return o, nil
}

func (o *Orchestrator) SessionID() string {
	return o.id
}

func (o *Orchestrator) View() View {
	return View{
		SessionID: o.id,
		Directory: o.directory,
		Snapshot:  o.state.Snapshot(),
	}
}

func (o *Orchestrator) SetParameters(params domain.SearchParameters) domain.SearchParameters {
	o.state.SetParameters(params)
	return o.state.Parameters()
}

// ClearSession wipes turns and supporting results and keeps the parameters.
func (o *Orchestrator) ClearSession() {
	o.state.Clear()
}

// Submit runs one exchange for utterance and blocks until it settles. Blank
// utterances and submissions made while busy are no-ops. Every dispatch
// failure becomes a single assistant turn; Submit itself never fails.
func (o *Orchestrator) Submit(ctx context.Context, utterance string) SubmitResult {
	if strings.TrimSpace(utterance) == "" {
		return SubmitResult{Status: SubmitRejectedEmpty}
	}
	history, params, ok := o.state.TryBegin(domain.UserTurn(utterance))
	if !ok {
		o.logger.Debug("submission dropped while exchange in flight")
		return SubmitResult{Status: SubmitRejectedBusy}
	}

	// The exchange runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	started := o.now()
	ex := domain.Exchange{
		ID:           newUUID(),
		SessionID:    o.id,
		Query:        utterance,
		LenderFilter: params.LenderFilter,
		ResultCount:  params.ResultCount,
		StartedAt:    started,
	}

	out, err := o.send(ctx, history, utterance, params)
	ex.Duration = o.now().Sub(started)
	if err != nil {
		dispatchErr := asDispatchError(err)
		ex.Outcome = dispatchErr.Outcome()
		ex.Reply = errorReplyPrefix + dispatchErr.UserMessage()
		o.state.Finish(domain.AssistantTurn(ex.Reply), nil, false)
		o.logger.Warn("chat exchange failed", "outcome", ex.Outcome, "reason", dispatchErr.Reason, "status", dispatchErr.Status, "err", err)
	} else {
		ex.Outcome = domain.OutcomeAnswered
		ex.Reply = out.ResponseText
		ex.ResultsReturned = len(out.SupportingResults)
		o.state.Finish(domain.AssistantTurn(out.ResponseText), out.SupportingResults, true)
		o.logger.Info("chat exchange answered", "results", ex.ResultsReturned, "lender_filter", ex.LenderFilter, "duration", ex.Duration)
	}

	if o.observer != nil {
		o.observer.ObserveExchange(ex.Outcome, ex.Duration)
	}
	if o.recorder != nil {
		if recErr := o.recorder.RecordExchange(ctx, ex); recErr != nil {
			o.logger.Warn("failed to archive exchange", "exchange_id", ex.ID, "err", recErr)
		}
	}
	return SubmitResult{Status: SubmitAccepted, Exchange: ex}
}

func (o *Orchestrator) send(ctx context.Context, history []domain.ChatTurn, utterance string, params domain.SearchParameters) (out ChatOutcome, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = ChatOutcome{}, newError(ErrorTransport, "dispatcher_panic", fmt.Errorf("usecase: dispatcher panicked: %v", p))
		}
	}()
	return o.sender.Send(ctx, history, utterance, params)
}

func asDispatchError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(ErrorTransport, "unclassified", err)
}

var newUUID = func() string {
	return uuid.NewString()
}
