package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncSignup(string)                  {}
func (n *NoopRecorder) IncSignin(string)                  {}
func (n *NoopRecorder) IncAuthFailure(string)             {}
func (n *NoopRecorder) IncTaskCreated()                   {}
func (n *NoopRecorder) IncTaskUpdated()                   {}
func (n *NoopRecorder) IncTaskCompleted()                 {}
func (n *NoopRecorder) IncTaskDeleted()                   {}
func (n *NoopRecorder) IncChat(string)                    {}
func (n *NoopRecorder) ObserveChatDuration(time.Duration) {}
func (n *NoopRecorder) IncRateLimited(string)             {}
