package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/beacon/internal/config"
	"github.com/MikeSquared-Agency/beacon/internal/governance"
)

func corpusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "corpus",
		Short: "Inspect the governance corpus",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check [dir]",
		Short: "Load a corpus and verify its exemplars and templates pass the scan",
		Long: `Load the governance corpus from dir, CORPUS_DIR, or the embedded copy,
print its size, and fail if an exemplar report or fallback template would
itself be flagged by the forbidden-term scan.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCorpusCheck,
	})
	return cmd
}

func runCorpusCheck(cmd *cobra.Command, args []string) error {
	dir := config.Load().CorpusDir
	if len(args) == 1 {
		dir = args[0]
	}
	c, err := governance.Load(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	source := dir
	if source == "" {
		source = "(embedded)"
	}
	fmt.Fprintf(out, "Corpus:     %s\n", source)
	fmt.Fprintf(out, "Terms:      %d\n", len(c.ForbiddenTerms))
	fmt.Fprintf(out, "Exemplars:  %d\n", c.ExemplarCount())

	failed := 0
	check := func(name, text string) {
		findings := c.Scan(text)
		if len(findings) == 0 {
			return
		}
		failed++
		for _, f := range findings {
			fmt.Fprintf(out, "  %s: %s %q\n", name, f.Kind, f.Term)
		}
	}
	check("exemplars", c.ExemplarReports)
	check("parent template", governance.FallbackTemplate("parent"))
	check("teacher template", governance.FallbackTemplate("teacher"))

	if failed > 0 {
		return fmt.Errorf("corpus check failed: %d section(s) with findings", failed)
	}
	fmt.Fprintln(out, "Status:     OK")
	return nil
}
