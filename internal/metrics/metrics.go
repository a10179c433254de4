// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome and reason labels.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeError    = "error"

	ReasonMissingToken = "missing_token"
	ReasonTokenExpired = "token_expired"
	ReasonTokenInvalid = "token_invalid"

	ChatRAG         = "rag"
	ChatNoRAG       = "no_rag"
	ChatDegraded    = "degraded"
	ChatUnavailable = "unavailable"

	ScopeAuth = "auth"
	ScopeAPI  = "api"
	ScopeChat = "chat"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Account metrics
	IncSignup(outcome string) // success, conflict, invalid, error
	IncSignin(outcome string) // success, invalid, error
	IncAuthFailure(reason string)

	// Task metrics
	IncTaskCreated()
	IncTaskUpdated()
	IncTaskCompleted()
	IncTaskDeleted()

	// Assistant metrics
	IncChat(outcome string) // rag, no_rag, degraded, unavailable
	ObserveChatDuration(duration time.Duration)

	// Throttling
	IncRateLimited(scope string) // auth, api, chat
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
