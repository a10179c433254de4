package metrics

import (
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Signups             map[string]uint64
	Signins             map[string]uint64
	AuthFailures        map[string]uint64
	TasksCreated        uint64
	TasksUpdated        uint64
	TasksCompleted      uint64
	TasksDeleted        uint64
	Chats               map[string]uint64
	ChatDurationCount   uint64
	ChatDurationTotalNs int64
	RateLimited         map[string]uint64
}

// labeled is a fixed set of counters keyed by label. The key set is fixed
// at construction so lookups need no lock; unknown labels are dropped.
type labeled map[string]*atomic.Uint64

func newLabeled(labels ...string) labeled {
	l := make(labeled, len(labels))
	for _, name := range labels {
		l[name] = new(atomic.Uint64)
	}
	return l
}

func (l labeled) inc(label string) {
	if c, ok := l[label]; ok {
		c.Add(1)
	}
}

func (l labeled) snapshot() map[string]uint64 {
	out := make(map[string]uint64, len(l))
	for k, v := range l {
		out[k] = v.Load()
	}
	return out
}

// InMemoryRecorder stores metrics in memory. It backs /metrics and tests.
type InMemoryRecorder struct {
	signups      labeled
	signins      labeled
	authFailures labeled
	chats        labeled
	rateLimited  labeled

	tasksCreated   atomic.Uint64
	tasksUpdated   atomic.Uint64
	tasksCompleted atomic.Uint64
	tasksDeleted   atomic.Uint64

	chatDurationCount   atomic.Uint64
	chatDurationTotalNs atomic.Int64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		signups:      newLabeled(OutcomeSuccess, OutcomeConflict, OutcomeInvalid, OutcomeError),
		signins:      newLabeled(OutcomeSuccess, OutcomeInvalid, OutcomeError),
		authFailures: newLabeled(ReasonMissingToken, ReasonTokenExpired, ReasonTokenInvalid),
		chats:        newLabeled(ChatRAG, ChatNoRAG, ChatDegraded, ChatUnavailable),
		rateLimited:  newLabeled(ScopeAuth, ScopeAPI, ScopeChat),
	}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	return Snapshot{
		Signups:             m.signups.snapshot(),
		Signins:             m.signins.snapshot(),
		AuthFailures:        m.authFailures.snapshot(),
		TasksCreated:        m.tasksCreated.Load(),
		TasksUpdated:        m.tasksUpdated.Load(),
		TasksCompleted:      m.tasksCompleted.Load(),
		TasksDeleted:        m.tasksDeleted.Load(),
		Chats:               m.chats.snapshot(),
		ChatDurationCount:   m.chatDurationCount.Load(),
		ChatDurationTotalNs: m.chatDurationTotalNs.Load(),
		RateLimited:         m.rateLimited.snapshot(),
	}
}

// IncSignup counts a signup attempt by outcome.
func (m *InMemoryRecorder) IncSignup(outcome string) { m.signups.inc(outcome) }

// IncSignin counts a signin attempt by outcome.
func (m *InMemoryRecorder) IncSignin(outcome string) { m.signins.inc(outcome) }

// IncAuthFailure counts a rejected bearer token by reason.
func (m *InMemoryRecorder) IncAuthFailure(reason string) { m.authFailures.inc(reason) }

// IncTaskCreated increments task created counter.
func (m *InMemoryRecorder) IncTaskCreated() { m.tasksCreated.Add(1) }

// IncTaskUpdated increments task updated counter.
func (m *InMemoryRecorder) IncTaskUpdated() { m.tasksUpdated.Add(1) }

// IncTaskCompleted increments task completed counter.
func (m *InMemoryRecorder) IncTaskCompleted() { m.tasksCompleted.Add(1) }

// IncTaskDeleted increments task deleted counter.
func (m *InMemoryRecorder) IncTaskDeleted() { m.tasksDeleted.Add(1) }

// IncChat counts a chat request by outcome.
func (m *InMemoryRecorder) IncChat(outcome string) { m.chats.inc(outcome) }

// ObserveChatDuration records chat duration.
func (m *InMemoryRecorder) ObserveChatDuration(duration time.Duration) {
	m.chatDurationCount.Add(1)
	m.chatDurationTotalNs.Add(duration.Nanoseconds())
}

// IncRateLimited counts a throttled request by scope.
func (m *InMemoryRecorder) IncRateLimited(scope string) { m.rateLimited.inc(scope) }
