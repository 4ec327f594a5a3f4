package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taxease/rentadvisor/internal/classifier"
	"github.com/taxease/rentadvisor/internal/tax"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze [file]",
	Short: "Analyze a property set and recommend a claim method",
	Long: `Analyze reads a JSON array of properties from a file or stdin, runs the
full analysis pipeline, and prints the report.

Examples:
  # Analyze a saved property set
  rentadvisor analyze properties.json

  # Read from stdin
  cat properties.json | rentadvisor analyze -

  # Machine-readable output
  rentadvisor analyze --json properties.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "print the report as JSON")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	props, err := readProperties(args)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.logger.Sync()

	p, err := a.newPipeline()
	if err != nil {
		return err
	}

	report, err := p.Run(cmd.Context(), props)
	if err != nil {
		var cerr *classifier.Error
		if errors.As(err, &cerr) {
			return fmt.Errorf("classification failed for properties %v: %w", cerr.PropertyIDs(), err)
		}
		return err
	}

	if analyzeJSON {
		return json.NewEncoder(os.Stdout).Encode(report)
	}
	printReport(os.Stdout, report)
	return nil
}

// readProperties decodes the property set from the file argument or
// stdin, assigning ordinal IDs where the input leaves them zero.
func readProperties(args []string) ([]tax.Property, error) {
	var in io.Reader = os.Stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return nil, fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var props []tax.Property
	if err := json.NewDecoder(in).Decode(&props); err != nil {
		return nil, fmt.Errorf("decoding properties: %w", err)
	}
	for i := range props {
		if props[i].ID == 0 {
			props[i].ID = i + 1
		}
	}
	return props, nil
}

// printReport renders the report as plain text. Styling beyond this is
// the presentation layer's concern.
func printReport(w io.Writer, report *tax.AnalysisReport) {
	for _, agg := range []tax.AggregateResult{report.Actual, report.Simplified} {
		fmt.Fprintf(w, "== %s method ==\n", methodName(agg.Method))
		for _, r := range agg.PerProperty {
			fmt.Fprintf(w, "Property %d: income $%s, deductions $%s, share %s%%, taxable rent $%s\n",
				r.PropertyID,
				r.RentalIncome.StringFixed(2),
				r.DeductibleTotal.StringFixed(2),
				r.OwnershipShareApplied,
				r.TaxableRent.StringFixed(2),
			)
			for _, nd := range r.NonDeductibleExpenses {
				fmt.Fprintf(w, "  not deductible: %s $%s (%s)\n",
					nd.Category, nd.Amount.StringFixed(2), nd.Rationale)
			}
		}
		fmt.Fprintf(w, "Total taxable rent: $%s\n\n", agg.TotalTaxableRent.StringFixed(2))
	}

	fmt.Fprintln(w, strings.TrimSpace(report.Narrative))

	switch report.Recommended {
	case tax.RecommendTie:
		fmt.Fprintln(w, "\nRecommendation: none (both methods are equal)")
	default:
		fmt.Fprintf(w, "\nRecommendation: %s method\n", methodName(tax.Method(report.Recommended)))
	}
}

func methodName(m tax.Method) string {
	switch m {
	case tax.MethodActual:
		return "actual expense claims"
	case tax.MethodSimplified:
		return "simplified claims"
	default:
		return string(m)
	}
}
