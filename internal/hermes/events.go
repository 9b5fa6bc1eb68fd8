package hermes

import (
	"log/slog"
	"time"
)

// Subjects carry identifiers and labels only. Feature values, narrative
// content and learner codes never leave the process on the bus.
const (
	SubjectSessionCompleted = "beacon.session.completed"
	SubjectTrendUpdated     = "beacon.trend.updated"
	SubjectReportFinalized  = "beacon.report.finalized"
)

type SessionCompleted struct {
	SessionID       string    `json:"session_id"`
	LearnerID       string    `json:"learner_id"`
	ActivityKind    string    `json:"activity_kind"`
	PatternDetected bool      `json:"pattern_detected"`
	PatternName     string    `json:"pattern_name,omitempty"`
	CompletedAt     time.Time `json:"completed_at"`
}

type TrendEntry struct {
	PatternName string `json:"pattern_name"`
	TrendType   string `json:"trend_type"`
}

type TrendUpdated struct {
	LearnerID string       `json:"learner_id"`
	Trends    []TrendEntry `json:"trends"`
}

type ReportFinalized struct {
	ReportID         string `json:"report_id"`
	LearnerID        string `json:"learner_id"`
	Scope            string `json:"scope"`
	Audience         string `json:"audience"`
	GenerationMethod string `json:"generation_method"`
	ValidationStatus string `json:"validation_status"`
}

// Publisher is satisfied by *Client.
type Publisher interface {
	Publish(subject string, data any) error
}

// Notifier publishes domain events best-effort. A nil Notifier, or one
// built without a publisher, drops events silently so NATS stays optional.
type Notifier struct {
	pub    Publisher
	logger *slog.Logger
}

// NewNotifier wraps pub. Pass a nil interface, not a nil *Client, to run
// without a bus.
func NewNotifier(pub Publisher, logger *slog.Logger) *Notifier {
	return &Notifier{pub: pub, logger: logger}
}

func (n *Notifier) SessionCompleted(e SessionCompleted) {
	n.publish(SubjectSessionCompleted, e)
}

func (n *Notifier) TrendUpdated(e TrendUpdated) {
	n.publish(SubjectTrendUpdated, e)
}

func (n *Notifier) ReportFinalized(e ReportFinalized) {
	n.publish(SubjectReportFinalized, e)
}

func (n *Notifier) publish(subject string, e any) {
	if n == nil || n.pub == nil {
		return
	}
	if err := n.pub.Publish(subject, e); err != nil {
		n.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
