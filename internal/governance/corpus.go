package governance

import (
	"bufio"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

//go:embed corpus/*.txt corpus/*.md
var embedded embed.FS

const (
	forbiddenFile = "forbidden_terms.txt"
	phrasingFile  = "allowed_phrasing.txt"
	structureFile = "structure_rules.txt"
	exemplarFile  = "exemplar_reports.md"
)

// Corpus is the immutable set of language constraints loaded once at start.
type Corpus struct {
	ForbiddenTerms  []string
	AllowedPhrasing string
	StructureRules  string
	ExemplarReports string

	termPatterns []*regexp.Regexp
}

// Load reads the four corpus files from dir, or the embedded copy when dir is
// empty.
func Load(dir string) (*Corpus, error) {
	if dir == "" {
		sub, err := fs.Sub(embedded, "corpus")
		if err != nil {
			return nil, fmt.Errorf("open embedded corpus: %w", err)
		}
		return LoadFS(sub)
	}
	return LoadFS(os.DirFS(dir))
}

// LoadFS reads the corpus from fsys. Every file must exist and the forbidden
// term list must not be empty.
func LoadFS(fsys fs.FS) (*Corpus, error) {
	read := func(name string) (string, error) {
		b, err := fs.ReadFile(fsys, name)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", name, err)
		}
		return strings.TrimSpace(string(b)), nil
	}

	raw, err := read(forbiddenFile)
	if err != nil {
		return nil, err
	}
	terms, err := parseTerms(raw)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("%s: no terms", forbiddenFile)
	}

	c := &Corpus{ForbiddenTerms: terms}
	if c.AllowedPhrasing, err = read(phrasingFile); err != nil {
		return nil, err
	}
	if c.StructureRules, err = read(structureFile); err != nil {
		return nil, err
	}
	if c.ExemplarReports, err = read(exemplarFile); err != nil {
		return nil, err
	}

	c.termPatterns = make([]*regexp.Regexp, len(terms))
	for i, t := range terms {
		c.termPatterns[i] = termPattern(t)
	}
	return c, nil
}

func parseTerms(raw string) ([]string, error) {
	var terms []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		line := strings.ToLower(strings.TrimSpace(sc.Text()))
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		terms = append(terms, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("parse %s: %w", forbiddenFile, err)
	}
	return terms, nil
}

// termPattern matches a term case-insensitively on word boundaries. Inner
// whitespace in phrases matches any run of whitespace.
func termPattern(term string) *regexp.Regexp {
	words := strings.Fields(term)
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b` + strings.Join(words, `\s+`) + `\b`)
}

// ExemplarCount returns the number of exemplar reports, one per "## " heading.
func (c *Corpus) ExemplarCount() int {
	n := 0
	for _, line := range strings.Split(c.ExemplarReports, "\n") {
		if strings.HasPrefix(line, "## ") {
			n++
		}
	}
	return n
}

// PromptContext renders the corpus as validator context.
func (c *Corpus) PromptContext() string {
	var b strings.Builder
	b.WriteString("=== FORBIDDEN TERMS ===\n")
	b.WriteString(strings.Join(c.ForbiddenTerms, "\n"))
	b.WriteString("\n\n=== ALLOWED PHRASING ===\n")
	b.WriteString(c.AllowedPhrasing)
	b.WriteString("\n\n=== STRUCTURE RULES ===\n")
	b.WriteString(c.StructureRules)
	b.WriteString("\n\n=== EXEMPLAR REPORTS ===\n")
	b.WriteString(c.ExemplarReports)
	b.WriteString("\n")
	return b.String()
}
