package governance

import (
	"strings"
	"testing"
	"testing/fstest"
)

func mustLoad(t *testing.T) *Corpus {
	t.Helper()
	c, err := Load("")
	if err != nil {
		t.Fatalf("load embedded corpus: %v", err)
	}
	return c
}

func TestLoad_Embedded(t *testing.T) {
	c := mustLoad(t)
	if len(c.ForbiddenTerms) < 20 {
		t.Errorf("expected a full term list, got %d terms", len(c.ForbiddenTerms))
	}
	for _, term := range c.ForbiddenTerms {
		if strings.HasPrefix(term, "#") {
			t.Errorf("comment line leaked into terms: %q", term)
		}
	}
	if c.ExemplarCount() != 3 {
		t.Errorf("expected 3 exemplars, got %d", c.ExemplarCount())
	}
	if c.AllowedPhrasing == "" || c.StructureRules == "" {
		t.Error("expected phrasing and structure rules to be loaded")
	}
}

func TestLoadFS_MissingFile(t *testing.T) {
	fsys := fstest.MapFS{
		forbiddenFile: {Data: []byte("disorder\n")},
		phrasingFile:  {Data: []byte("be kind")},
	}
	if _, err := LoadFS(fsys); err == nil {
		t.Fatal("expected error when structure rules and exemplars are missing")
	}
}

func TestLoadFS_EmptyTerms(t *testing.T) {
	fsys := fstest.MapFS{
		forbiddenFile: {Data: []byte("# only a comment\n\n")},
		phrasingFile:  {Data: []byte("a")},
		structureFile: {Data: []byte("b")},
		exemplarFile:  {Data: []byte("c")},
	}
	if _, err := LoadFS(fsys); err == nil {
		t.Fatal("expected error for an empty term list")
	}
}

func TestLoadFS_DedupesAndLowercases(t *testing.T) {
	fsys := fstest.MapFS{
		forbiddenFile: {Data: []byte("Disorder\ndisorder\n  Special Needs  \n")},
		phrasingFile:  {Data: []byte("a")},
		structureFile: {Data: []byte("b")},
		exemplarFile:  {Data: []byte("c")},
	}
	c, err := LoadFS(fsys)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.ForbiddenTerms) != 2 || c.ForbiddenTerms[0] != "disorder" || c.ForbiddenTerms[1] != "special needs" {
		t.Errorf("unexpected terms: %q", c.ForbiddenTerms)
	}
}

func TestScan(t *testing.T) {
	c := mustLoad(t)

	tests := []struct {
		name  string
		text  string
		terms []string
	}{
		{"clean", "Your child showed a steady rhythm today.", nil},
		{"single term", "This may indicate a learning disorder.", []string{"learning disorder", "disorder"}},
		{"case insensitive", "Signs of ADHD were seen.", []string{"adhd"}},
		{"phrase across whitespace", "has special\n needs", []string{"special needs"}},
		{"word boundary", "They were behindhand and abnormally quiet.", nil},
		{"numeral", "Responded in 450 ms.", []string{"450"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := map[string]bool{}
			for _, f := range c.Scan(tt.text) {
				got[f.Term] = true
			}
			if len(got) != len(tt.terms) {
				t.Errorf("Scan(%q) = %v, want %v", tt.text, got, tt.terms)
			}
			for _, want := range tt.terms {
				if !got[want] {
					t.Errorf("Scan(%q) missing %q", tt.text, want)
				}
			}
		})
	}
}

func TestScan_NumeralKind(t *testing.T) {
	c := mustLoad(t)
	findings := c.Scan("scored 9 of 10")
	if len(findings) != 2 {
		t.Fatalf("expected 2 numerals, got %+v", findings)
	}
	for _, f := range findings {
		if f.Kind != FindingNumeral {
			t.Errorf("expected numeral finding, got %q", f.Kind)
		}
	}
}

func TestDisclaimer_IsClean(t *testing.T) {
	c := mustLoad(t)
	if !c.Clean(Disclaimer) {
		t.Errorf("disclaimer has findings: %+v", c.Scan(Disclaimer))
	}
	// the disclaimer gets no special treatment from the scan
	if c.Clean("A calm session.\n\n" + Disclaimer + " A diagnostic assessment follows.") {
		t.Error("expected terms next to the disclaimer to be flagged")
	}
}

func TestFallbackTemplates_AreClean(t *testing.T) {
	c := mustLoad(t)
	for _, audience := range []string{"parent", "teacher"} {
		tpl := FallbackTemplate(audience)
		if !c.Clean(tpl) {
			t.Errorf("%s template has findings: %+v", audience, c.Scan(tpl))
		}
		if !strings.HasSuffix(tpl, Disclaimer) {
			t.Errorf("%s template must end with the disclaimer", audience)
		}
	}
	if FallbackTemplate("parent") == FallbackTemplate("teacher") {
		t.Error("expected audience-specific templates")
	}
}

func TestExemplars_AreClean(t *testing.T) {
	c := mustLoad(t)
	if !c.Clean(c.ExemplarReports) {
		t.Errorf("exemplar reports have findings: %+v", c.Scan(c.ExemplarReports))
	}
}

func TestEnsureDisclaimer(t *testing.T) {
	got := EnsureDisclaimer("Steady focus today.  ")
	if got != "Steady focus today.\n\n"+Disclaimer {
		t.Errorf("unexpected result: %q", got)
	}
	if again := EnsureDisclaimer(got); again != got {
		t.Errorf("disclaimer appended twice: %q", again)
	}
	if EnsureDisclaimer("") != Disclaimer {
		t.Error("empty text should become the disclaimer alone")
	}
}

func TestPromptContext(t *testing.T) {
	c := mustLoad(t)
	ctx := c.PromptContext()
	for _, section := range []string{"FORBIDDEN TERMS", "ALLOWED PHRASING", "STRUCTURE RULES", "EXEMPLAR REPORTS"} {
		if !strings.Contains(ctx, section) {
			t.Errorf("prompt context missing %s section", section)
		}
	}
}
