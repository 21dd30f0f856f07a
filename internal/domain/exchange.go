package domain

import "time"

// Outcome classifies how an exchange settled.
type Outcome string

const (
	OutcomeAnswered         Outcome = "answered"
	OutcomeBackendStatus    Outcome = "backend_status"
	OutcomeApplicationError Outcome = "application_error"
	OutcomeTransportFailure Outcome = "transport_failure"
)

// Exchange is one settled user submission and its assistant reply.
type Exchange struct {
	ID              string
	SessionID       string
	Query           string
	Reply           string
	Outcome         Outcome
	LenderFilter    string
	ResultCount     int
	ResultsReturned int
	StartedAt       time.Time
	Duration        time.Duration
}
