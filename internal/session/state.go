// Package session holds the in-memory state of one chat session: the ordered
// conversation, the active search parameters, the latest supporting results and
// the busy flag guarding the single in-flight exchange.
//
// Every mutator is total. State is safe for concurrent use; callers that need
// check-then-act semantics (such as the busy guard) use TryBegin.
package session

import (
	"sync"

	"mortgage-criteria-chat/internal/domain"
)

// State is the mutable session record. The zero value is not usable; call New.
type State struct {
	mu      sync.RWMutex
	turns   []domain.ChatTurn
	params  domain.SearchParameters
	results []domain.SupportingResult
	busy    bool
}

// Snapshot is a read-only copy of State for presentation.
type Snapshot struct {
	Turns      []domain.ChatTurn
	Parameters domain.SearchParameters
	Results    []domain.SupportingResult
	Busy       bool
}

func New(params domain.SearchParameters) *State {
	return &State{
		params:  params.Normalize(),
		turns:   []domain.ChatTurn{},
		results: []domain.SupportingResult{},
	}
}

func (s *State) AppendTurn(turn domain.ChatTurn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, turn)
}

// SetParameters stores params after clamping the result count and mapping the
// AllLenders sentinel to "no filter".
func (s *State) SetParameters(params domain.SearchParameters) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = params.Normalize()
}

// Clear drops the conversation and supporting results. Parameters survive.
func (s *State) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = []domain.ChatTurn{}
	s.results = []domain.SupportingResult{}
}

// SetSupportingResults replaces the supporting results wholesale.
func (s *State) SetSupportingResults(results []domain.SupportingResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append([]domain.SupportingResult{}, results...)
}

func (s *State) SetBusy(busy bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = busy
}

// TryBegin starts an exchange: if the session is idle it appends turn, marks
// the session busy and returns the history including turn together with the
// current parameters. It returns ok=false and changes nothing when the session
// is already busy.
func (s *State) TryBegin(turn domain.ChatTurn) (history []domain.ChatTurn, params domain.SearchParameters, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, domain.SearchParameters{}, false
	}
	s.turns = append(s.turns, turn)
	s.busy = true
	return append([]domain.ChatTurn(nil), s.turns...), s.params, true
}

// Finish settles the in-flight exchange in one step: it appends reply,
// replaces the supporting results when replaceResults is set, and clears the
// busy flag.
func (s *State) Finish(reply domain.ChatTurn, results []domain.SupportingResult, replaceResults bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, reply)
	if replaceResults {
		s.results = append([]domain.SupportingResult{}, results...)
	}
	s.busy = false
}

func (s *State) Busy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.busy
}

func (s *State) Parameters() domain.SearchParameters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params
}

func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Turns:      append([]domain.ChatTurn{}, s.turns...),
		Parameters: s.params,
		Results:    append([]domain.SupportingResult{}, s.results...),
		Busy:       s.busy,
	}
}
