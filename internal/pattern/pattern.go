package pattern

import (
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/beacon/internal/features"
)

// Pattern names. These are the only values a snapshot can carry.
const (
	VariableFocusRhythm    = "Variable focus rhythm"
	BuildingTargetTracking = "Building target tracking"
	SteadyFocus            = "Steady focus"
)

const (
	// HighVariabilityThreshold is compared against the reaction time
	// coefficient of variation.
	HighVariabilityThreshold = 0.4
	// HighMissThreshold is compared against the miss rate.
	HighMissThreshold = 0.3

	// MinEvents is the smallest session that yields a snapshot.
	MinEvents = 3

	moderateEvents = 10
	highEvents     = 25
)

// Confidence is internal only. It is stored with each snapshot by rule tier and
// is never rendered into client-facing text.
type Confidence string

const (
	ConfidenceLow      Confidence = "low"
	ConfidenceModerate Confidence = "moderate"
	ConfidenceHigh     Confidence = "high"
)

// Result is the outcome of the decision table.
type Result struct {
	Name           string
	LearningImpact string
	SupportFocus   string
	Confidence     Confidence
}

// Snapshot is the durable, language-only record of one completed session.
type Snapshot struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      uuid.UUID  `json:"session_id"`
	LearnerID      uuid.UUID  `json:"learner_id"`
	PatternName    string     `json:"pattern_name"`
	LearningImpact string     `json:"learning_impact"`
	SupportFocus   string     `json:"support_focus"`
	Confidence     Confidence `json:"-"`
	CreatedAt      time.Time  `json:"created_at"`
}

// NewSnapshot binds an inference result to its session and learner.
func NewSnapshot(sessionID, learnerID uuid.UUID, r Result, now time.Time) Snapshot {
	return Snapshot{
		ID:             uuid.New(),
		SessionID:      sessionID,
		LearnerID:      learnerID,
		PatternName:    r.Name,
		LearningImpact: r.LearningImpact,
		SupportFocus:   r.SupportFocus,
		Confidence:     r.Confidence,
		CreatedAt:      now.UTC(),
	}
}

type template struct {
	learningImpact string
	supportFocus   string
}

var templates = map[string]template{
	VariableFocusRhythm: {
		learningImpact: "Learner shows varying response speeds, which may reflect natural fluctuations in attention during tasks.",
		supportFocus:   "Consider shorter activity bursts with brief breaks. Consistent routines may help maintain engagement.",
	},
	BuildingTargetTracking: {
		learningImpact: "Learner is developing skills in tracking and responding to visual targets.",
		supportFocus:   "Practice with slower-paced activities may build confidence. Celebrate successful responses.",
	},
	SteadyFocus: {
		learningImpact: "Learner demonstrated consistent response patterns during the activity.",
		supportFocus:   "Continue with current activities. The learner shows steady engagement.",
	},
}

// Names lists every pattern the engine can emit, in rule order.
func Names() []string {
	return []string{VariableFocusRhythm, BuildingTargetTracking, SteadyFocus}
}

// Infer evaluates the decision table over a feature vector. The numbers only
// select a template; none of them flow into the returned text.
func Infer(v features.Vector) Result {
	switch {
	case v.ReactionTimeVariability > HighVariabilityThreshold:
		return build(VariableFocusRhythm, ruleConfidence(v.TotalEvents))
	case v.MissRate > HighMissThreshold:
		return build(BuildingTargetTracking, ruleConfidence(v.TotalEvents))
	default:
		return build(SteadyFocus, ConfidenceModerate)
	}
}

func build(name string, c Confidence) Result {
	t := templates[name]
	return Result{
		Name:           name,
		LearningImpact: t.learningImpact,
		SupportFocus:   t.supportFocus,
		Confidence:     c,
	}
}

func ruleConfidence(events int) Confidence {
	switch {
	case events >= highEvents:
		return ConfidenceHigh
	case events >= moderateEvents:
		return ConfidenceModerate
	default:
		return ConfidenceLow
	}
}
