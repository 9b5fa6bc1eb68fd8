package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/beacon/internal/governance"
	"github.com/MikeSquared-Agency/beacon/internal/llm"
)

// errValidationUnavailable never leaves the package; an unreachable
// validator resolves to Rejected.
var errValidationUnavailable = errors.New("report validation unavailable")

// Reasons recorded on Rejected outcomes.
const (
	ReasonValidatorUnavailable = "validator unavailable"
	ReasonValidatorRejected    = "rejected by validator"
	ReasonMalformedVerdict     = "malformed verdict"
	ReasonApprovedWithFindings = "approved despite scan findings"
	ReasonEmptyRewrite         = "empty rewrite"
	ReasonRewriteFindings      = "rewrite failed scan"
)

type verdict string

const (
	verdictApproved  verdict = "approved"
	verdictRewritten verdict = "rewritten"
	verdictRejected  verdict = "rejected"
)

var verdictLine = regexp.MustCompile(`(?im)^[ \t*_#>]*status[ \t]*:[ \t*_]*(approved|rewritten|rejected)\b[ \t*_]*(.*)$`)

type Validator struct {
	corpus  *governance.Corpus
	llm     llm.Completer
	timeout time.Duration
	logger  *slog.Logger
}

func NewValidator(corpus *governance.Corpus, completer llm.Completer, timeout time.Duration, logger *slog.Logger) *Validator {
	if timeout <= 0 {
		timeout = defaultLLMTimeout
	}
	return &Validator{corpus: corpus, llm: completer, timeout: timeout, logger: logger}
}

// Validate resolves generated text to Approved, Rewritten or Rejected. It
// never returns unscanned model text: approved text had no findings, and a
// rewrite is scanned again before it is accepted.
func (v *Validator) Validate(ctx context.Context, g Generated) Outcome {
	findings := v.corpus.Scan(g.Content)
	if len(findings) > 0 {
		v.logger.Info("generated report failed deterministic scan", "findings", len(findings))
	}

	resp, err := v.review(ctx, g.Content, findings)
	if err != nil {
		v.logger.Warn("validator call failed, using template", "error", err)
		return v.reject(g.Audience, ReasonValidatorUnavailable)
	}

	kind, body := parseVerdict(resp)
	switch kind {
	case verdictApproved:
		if len(findings) > 0 {
			return v.reject(g.Audience, ReasonApprovedWithFindings)
		}
		return Approved{content: governance.EnsureDisclaimer(g.Content)}
	case verdictRewritten:
		if body == "" {
			return v.reject(g.Audience, ReasonEmptyRewrite)
		}
		if again := v.corpus.Scan(body); len(again) > 0 {
			v.logger.Info("rewritten report failed deterministic scan", "findings", len(again))
			return v.reject(g.Audience, ReasonRewriteFindings)
		}
		return Rewritten{content: governance.EnsureDisclaimer(body)}
	case verdictRejected:
		return v.reject(g.Audience, ReasonValidatorRejected)
	default:
		return v.reject(g.Audience, ReasonMalformedVerdict)
	}
}

func (v *Validator) reject(a Audience, reason string) Rejected {
	return Rejected{content: governance.FallbackTemplate(string(a)), reason: reason}
}

func (v *Validator) review(ctx context.Context, content string, findings []governance.Finding) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	resp, err := v.llm.Complete(ctx, llm.Request{
		System:      validatorSystem,
		User:        validationPrompt(v.corpus, content, findings),
		Temperature: validationTemperature,
		MaxTokens:   validationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", errValidationUnavailable, err)
	}
	return resp, nil
}

// parseVerdict reads the first status line. For a rewrite the body is
// everything after it, up to any further status line.
func parseVerdict(resp string) (verdict, string) {
	m := verdictLine.FindStringSubmatchIndex(resp)
	if m == nil {
		return "", ""
	}
	kind := verdict(strings.ToLower(resp[m[2]:m[3]]))

	rest := resp[m[4]:m[5]] + "\n" + resp[m[1]:]
	if next := verdictLine.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	return kind, strings.TrimSpace(rest)
}
