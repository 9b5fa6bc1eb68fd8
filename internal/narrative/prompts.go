package narrative

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/beacon/internal/governance"
	"github.com/MikeSquared-Agency/beacon/internal/pattern"
	"github.com/MikeSquared-Agency/beacon/internal/trend"
)

const (
	generationTemperature = 0.25
	generationMaxTokens   = 600
	validationTemperature = 0.1
	validationMaxTokens   = 800
)

const generatorRules = `You write short, calm, supportive summaries of learning patterns observed during gameplay activities.

Rules you must never break:
- Never use diagnostic, clinical or medical language, and never name or hint at any condition.
- Never recommend assessment, therapy or professional services.
- Never include numbers, scores, percentages, times or dates.
- Never compare the learner to other children, norms or milestones, and never predict outcomes.
- Describe what the learner is doing and how adults can support it, in strength-based language.
- Write plain prose in two or three short paragraphs, under two hundred words.
- End with the line: ` + governance.Disclaimer

const parentVoice = "Write for a parent or caregiver. Use warm, everyday language and refer to the learner as \"your child\"."

const teacherVoice = "Write for a classroom teacher. Use clear, practical language, refer to the learner as \"the learner\", and frame support as classroom strategies."

// generatorSystem is fixed per audience. Nothing from the request reaches it.
func generatorSystem(a Audience) string {
	voice := teacherVoice
	if a == AudienceParent {
		voice = parentVoice
	}
	return generatorRules + "\n\n" + voice
}

const validatorSystem = `You are a language validator for educational reports. You do not add insights or infer patterns; you only enforce the language constraints and structure rules provided.

Answer with exactly one status line first:
STATUS: APPROVED   when the report already complies.
STATUS: REWRITTEN  when it can be made compliant. Put the full corrected report on the lines after the status line and nothing else.
STATUS: REJECTED   when it cannot be made compliant. Give a brief reason after the status line.`

// generationPrompt carries only pattern names, their fixed texts and trend
// labels. Metrics, activity kinds, timestamps and identifiers never appear.
func generationPrompt(a Audience, snapshots []pattern.Snapshot, trends []trend.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Audience: %s\n\n", a)

	b.WriteString("Observed learning patterns:\n")
	for _, s := range uniquePatterns(snapshots) {
		fmt.Fprintf(&b, "- Pattern: %s\n", s.PatternName)
		fmt.Fprintf(&b, "  Learning impact: %s\n", s.LearningImpact)
		fmt.Fprintf(&b, "  Support focus: %s\n", s.SupportFocus)
	}

	if len(trends) > 0 {
		sorted := make([]trend.Summary, len(trends))
		copy(sorted, trends)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].PatternName < sorted[j].PatternName })

		b.WriteString("\nPatterns over time:\n")
		for _, t := range sorted {
			fmt.Fprintf(&b, "- %s: %s\n", t.PatternName, t.TrendType)
		}
	}

	b.WriteString("\nWrite a single, cohesive narrative report.")
	return b.String()
}

func uniquePatterns(snapshots []pattern.Snapshot) []pattern.Snapshot {
	seen := make(map[string]bool)
	var out []pattern.Snapshot
	for _, s := range snapshots {
		if seen[s.PatternName] {
			continue
		}
		seen[s.PatternName] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PatternName < out[j].PatternName })
	return out
}

func validationPrompt(c *governance.Corpus, content string, findings []governance.Finding) string {
	var b strings.Builder
	b.WriteString(c.PromptContext())

	if len(findings) > 0 {
		b.WriteString("\n=== AUTOMATED CHECK ===\n")
		b.WriteString("The report contains language that is not allowed:\n")
		for _, f := range findings {
			if f.Kind == governance.FindingNumeral {
				b.WriteString("- a numeral\n")
				continue
			}
			fmt.Fprintf(&b, "- the term %q\n", f.Term)
		}
		b.WriteString("It cannot be approved as written. Rewrite it or reject it.\n")
	}

	b.WriteString("\n=== REPORT TO VALIDATE ===\n")
	b.WriteString(content)
	b.WriteString("\n\nReview the report above against the constraints and exemplars.")
	return b.String()
}
