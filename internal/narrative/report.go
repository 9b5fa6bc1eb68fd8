// Package narrative turns pattern snapshots into validated, non-diagnostic
// reports. Generation and validation are two separate model calls; any
// failure after generation resolves to a static template, never to
// unvalidated text.
package narrative

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoPatterns            = errors.New("no patterns for report")
	ErrGenerationUnavailable = errors.New("report generation unavailable")
	ErrInvalidKey            = errors.New("invalid report request")
	// ErrAlreadyFinalized is returned by a store when a report has left the
	// pending state.
	ErrAlreadyFinalized = errors.New("report already finalized")
)

type Scope string

const (
	ScopeSession Scope = "session"
	ScopeLearner Scope = "learner"
)

type Audience string

const (
	AudienceParent  Audience = "parent"
	AudienceTeacher Audience = "teacher"
)

type Method string

const (
	MethodAI       Method = "ai"
	MethodTemplate Method = "template"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRewritten Status = "rewritten"
	StatusRejected  Status = "rejected"
)

// Key identifies one cacheable report. SessionID is uuid.Nil for learner scope.
type Key struct {
	LearnerID uuid.UUID
	Scope     Scope
	SessionID uuid.UUID
	Audience  Audience
}

func (k Key) Validate() error {
	if k.LearnerID == uuid.Nil {
		return fmt.Errorf("%w: learner id required", ErrInvalidKey)
	}
	switch k.Scope {
	case ScopeSession:
		if k.SessionID == uuid.Nil {
			return fmt.Errorf("%w: session id required for session scope", ErrInvalidKey)
		}
	case ScopeLearner:
		if k.SessionID != uuid.Nil {
			return fmt.Errorf("%w: session id not allowed for learner scope", ErrInvalidKey)
		}
	default:
		return fmt.Errorf("%w: unknown scope %q", ErrInvalidKey, k.Scope)
	}
	if k.Audience != AudienceParent && k.Audience != AudienceTeacher {
		return fmt.Errorf("%w: unknown audience %q", ErrInvalidKey, k.Audience)
	}
	return nil
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.LearnerID, k.Scope, k.SessionID, k.Audience)
}

type Report struct {
	ID               uuid.UUID  `json:"report_id"`
	LearnerID        uuid.UUID  `json:"learner_id"`
	Scope            Scope      `json:"scope"`
	SessionID        *uuid.UUID `json:"session_id,omitempty"`
	Audience         Audience   `json:"audience"`
	Content          string     `json:"content"`
	GenerationMethod Method     `json:"generation_method"`
	ValidationStatus Status     `json:"validation_status"`
	CreatedAt        time.Time  `json:"created_at"`
	// Cached is set when the report was served from an earlier generation.
	Cached bool `json:"cached"`
}

// Key returns the cache key the report was generated for.
func (r Report) Key() Key {
	k := Key{LearnerID: r.LearnerID, Scope: r.Scope, Audience: r.Audience}
	if r.SessionID != nil {
		k.SessionID = *r.SessionID
	}
	return k
}
