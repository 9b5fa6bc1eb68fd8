package governance

import "regexp"

// FindingKind classifies a deterministic scan hit.
type FindingKind string

const (
	FindingTerm    FindingKind = "forbidden_term"
	FindingNumeral FindingKind = "numeral"
)

type Finding struct {
	Kind FindingKind
	Term string
}

var (
	numeral           = regexp.MustCompile(`\p{Nd}+`)
	disclaimerPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(Disclaimer))
)

// Scan reports every forbidden term and numeral in text.
func (c *Corpus) Scan(text string) []Finding {
	var out []Finding
	for i, re := range c.termPatterns {
		if re.MatchString(text) {
			out = append(out, Finding{Kind: FindingTerm, Term: c.ForbiddenTerms[i]})
		}
	}
	for _, n := range numeral.FindAllString(text, -1) {
		out = append(out, Finding{Kind: FindingNumeral, Term: n})
	}
	return out
}

// Clean is Scan with a boolean result.
func (c *Corpus) Clean(text string) bool {
	return len(c.Scan(text)) == 0
}
