// Package advisor compares the two claim methods' aggregate results and
// produces the recommendation and narrative report.
//
// The recommendation is decided here, deterministically, from the
// engine's totals. The oracle only narrates around numbers that are
// already final; it never recomputes or restates them.
package advisor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/taxease/rentadvisor/internal/knowledge"
	"github.com/taxease/rentadvisor/internal/oracle"
	"github.com/taxease/rentadvisor/internal/tax"
)

// StrategyQuery is the fixed retrieval query for strategy guidance.
const StrategyQuery = "What are the benefits and considerations for choosing between the actual expense claims and simplified rental expense claims methods?"

// Config holds advisor configuration.
type Config struct {
	// RetrievalK is the strategy guidance retrieval fan-out.
	RetrievalK int `koanf:"retrieval_k"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.RetrievalK == 0 {
		c.RetrievalK = 3
	}
}

// Advisor produces the final comparative report.
type Advisor struct {
	retriever knowledge.Retriever
	oracle    oracle.Oracle
	config    Config
	logger    *zap.Logger
}

// New creates an advisor.
func New(retriever knowledge.Retriever, orc oracle.Oracle, config Config, logger *zap.Logger) *Advisor {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Advisor{retriever: retriever, oracle: orc, config: config, logger: logger}
}

// Advise builds the AnalysisReport for both aggregates. The narrative
// always opens with the deterministic comparison; if narrative
// generation fails, the report degrades to that comparison alone rather
// than failing a run whose numbers are already correct.
func (a *Advisor) Advise(ctx context.Context, actual, simplified tax.AggregateResult) (tax.AnalysisReport, error) {
	recommendation := Recommend(actual, simplified)
	comparison := comparisonText(recommendation, actual, simplified)

	passages, err := a.retriever.Retrieve(ctx, StrategyQuery, a.config.RetrievalK)
	if err != nil {
		return tax.AnalysisReport{}, fmt.Errorf("retrieving strategy guidance: %w", err)
	}

	narrative := comparison
	generated, err := a.oracle.Complete(ctx, buildNarrativePrompt(comparison, passages, actual, simplified))
	if err != nil {
		a.logger.Warn("narrative generation failed, using deterministic comparison", zap.Error(err))
	} else {
		narrative = comparison + "\n\n" + strings.TrimSpace(generated)
	}

	return tax.AnalysisReport{
		Actual:      actual,
		Simplified:  simplified,
		Recommended: recommendation,
		Narrative:   narrative,
	}, nil
}

// Recommend picks the method with the strictly lower total taxable rent.
// Exactly equal totals are a tie and carry no recommendation.
func Recommend(actual, simplified tax.AggregateResult) tax.Recommendation {
	switch actual.TotalTaxableRent.Cmp(simplified.TotalTaxableRent) {
	case -1:
		return tax.RecommendActual
	case 1:
		return tax.RecommendSimplified
	default:
		return tax.RecommendTie
	}
}

// comparisonText states the rule over the engine's totals verbatim.
func comparisonText(r tax.Recommendation, actual, simplified tax.AggregateResult) string {
	at := actual.TotalTaxableRent.StringFixed(2)
	st := simplified.TotalTaxableRent.StringFixed(2)

	switch r {
	case tax.RecommendActual:
		return fmt.Sprintf("The actual expense claims method yields $%s in total taxable rent vs $%s for the simplified method, so the actual expense claims method is recommended.", at, st)
	case tax.RecommendSimplified:
		return fmt.Sprintf("The simplified claims method yields $%s in total taxable rent vs $%s for the actual expense claims method, so the simplified claims method is recommended.", st, at)
	default:
		return fmt.Sprintf("Both methods yield exactly $%s in total taxable rent. There is no recommendation; weigh the trade-offs of each method instead.", at)
	}
}

// buildNarrativePrompt assembles the narration request. Per-property
// figures are pre-formatted so the oracle has nothing to calculate.
func buildNarrativePrompt(comparison string, passages []knowledge.Passage, actual, simplified tax.AggregateResult) string {
	var b strings.Builder
	b.WriteString("You are a rental income strategist writing the narrative section of a tax report.\n\n")

	if len(passages) > 0 {
		b.WriteString("Strategy guidance reference:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "Guidance %d:\n%s\n\n", i+1, p.Content)
		}
	}

	b.WriteString("Final computed figures (already exact, repeat them verbatim, do not recalculate anything):\n\n")
	writeAggregate(&b, actual)
	writeAggregate(&b, simplified)

	b.WriteString("Comparison (state this as-is):\n")
	b.WriteString(comparison)
	b.WriteString("\n\n")

	b.WriteString("Write a short report that explains the recommendation")
	b.WriteString(" (or, on a tie, the pros and cons of each method without recommending one),")
	b.WriteString(" explains each non-deductible expense, and closes with reminders that the owner is")
	b.WriteString(" responsible for accurate and timely tax reporting and must keep complete expense")
	b.WriteString(" records for five years. Do not use markdown code blocks.\n")
	return b.String()
}

func writeAggregate(b *strings.Builder, agg tax.AggregateResult) {
	fmt.Fprintf(b, "Method %s, total taxable rent $%s:\n", agg.Method, agg.TotalTaxableRent.StringFixed(2))
	for _, r := range agg.PerProperty {
		fmt.Fprintf(b, "- property %d: income $%s, deductions $%s, share %s%%, taxable rent $%s\n",
			r.PropertyID,
			r.RentalIncome.StringFixed(2),
			r.DeductibleTotal.StringFixed(2),
			r.OwnershipShareApplied,
			r.TaxableRent.StringFixed(2),
		)
		for _, nd := range r.NonDeductibleExpenses {
			fmt.Fprintf(b, "  - not deductible: %s $%s (%s)\n", nd.Category, nd.Amount.StringFixed(2), nd.Rationale)
		}
	}
	b.WriteString("\n")
}
