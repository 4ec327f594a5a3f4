// Package classifier assigns a deductibility verdict to every declared
// expense, grounded in retrieved guideline text with an optional
// web-search fallback for ambiguous cases.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taxease/rentadvisor/internal/knowledge"
	"github.com/taxease/rentadvisor/internal/oracle"
	"github.com/taxease/rentadvisor/internal/research"
	"github.com/taxease/rentadvisor/internal/tax"
)

var tracer = otel.Tracer("rentadvisor.classifier")

// GuidelineQuery is the fixed retrieval query issued once per run.
const GuidelineQuery = "What are the allowable and non-allowable rental expenses for tax deduction?"

// insufficientEvidence is the fail-safe rationale applied when neither
// guidelines nor web search could resolve a verdict.
const insufficientEvidence = "insufficient evidence"

// Verdict markers the oracle is instructed to emit.
const (
	verdictDeductible    = "DEDUCTIBLE"
	verdictNonDeductible = "NON_DEDUCTIBLE"
	verdictUnresolved    = "UNRESOLVED"
)

// Config holds classifier configuration.
type Config struct {
	// RetrievalK is the guideline retrieval fan-out.
	RetrievalK int `koanf:"retrieval_k"`

	// FallbackSearch gates the web-search path for ambiguous expenses.
	FallbackSearch bool `koanf:"fallback_search"`

	// Concurrency bounds parallel per-expense oracle calls.
	Concurrency int `koanf:"concurrency"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.RetrievalK == 0 {
		c.RetrievalK = 5
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
}

// Error aggregates per-property classification failures so the caller
// sees every affected property, not just the first.
type Error struct {
	// Failures maps property ID to its cause.
	Failures map[int]error
}

// Error implements error.
func (e *Error) Error() string {
	ids := e.PropertyIDs()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("property %d: %v", id, e.Failures[id])
	}
	return "classification failed: " + strings.Join(parts, "; ")
}

// PropertyIDs returns the affected property IDs in ascending order.
func (e *Error) PropertyIDs() []int {
	ids := make([]int, 0, len(e.Failures))
	for id := range e.Failures {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Unwrap exposes the underlying causes for errors.Is matching.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, err := range e.Failures {
		errs = append(errs, err)
	}
	return errs
}

// Classifier labels expenses as deductible or not.
type Classifier struct {
	retriever knowledge.Retriever
	searcher  research.Searcher
	oracle    oracle.Oracle
	config    Config
	logger    *zap.Logger
}

// New creates a classifier. searcher may be nil when the fallback path
// is disabled.
func New(retriever knowledge.Retriever, searcher research.Searcher, orc oracle.Oracle, config Config, logger *zap.Logger) *Classifier {
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		retriever: retriever,
		searcher:  searcher,
		oracle:    orc,
		config:    config,
		logger:    logger,
	}
}

// ClassifyAll classifies every expense of every property. Guidelines are
// retrieved once; per-expense oracle calls run concurrently and results
// are re-assembled in original expense order.
//
// An index failure propagates directly (fatal). Oracle failures are
// collected per property and returned as one *Error; no partial result
// is produced in that case.
func (c *Classifier) ClassifyAll(ctx context.Context, props []tax.Property) ([]tax.ClassifiedProperty, error) {
	ctx, span := tracer.Start(ctx, "classifier.ClassifyAll")
	defer span.End()
	span.SetAttributes(attribute.Int("properties", len(props)))

	passages, err := c.retriever.Retrieve(ctx, GuidelineQuery, c.config.RetrievalK)
	if err != nil {
		return nil, fmt.Errorf("retrieving deduction guidelines: %w", err)
	}
	guidelines := joinPassages(passages)

	out := make([]tax.ClassifiedProperty, len(props))
	failures := map[int]error{}

	for i, p := range props {
		classified, err := c.classifyProperty(ctx, p, guidelines)
		if err != nil {
			c.logger.Warn("property classification failed",
				zap.Int("property_id", p.ID),
				zap.Error(err),
			)
			failures[p.ID] = err
			continue
		}
		out[i] = tax.ClassifiedProperty{Property: p, Expenses: classified}
	}

	if len(failures) > 0 {
		return nil, &Error{Failures: failures}
	}
	return out, nil
}

// classifyProperty classifies one property's expenses concurrently,
// preserving submission order in the result.
func (c *Classifier) classifyProperty(ctx context.Context, p tax.Property, guidelines string) ([]tax.ClassifiedExpense, error) {
	results := make([]tax.ClassifiedExpense, len(p.Expenses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for i, e := range p.Expenses {
		g.Go(func() error {
			ce, err := c.classifyExpense(gctx, e, guidelines)
			if err != nil {
				return err
			}
			results[i] = ce
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// classifyExpense runs the verdict protocol for a single expense:
// guideline-grounded oracle call, then the search fallback when the
// verdict is unresolved, then the fail-safe non-deductible default.
func (c *Classifier) classifyExpense(ctx context.Context, e tax.Expense, guidelines string) (tax.ClassifiedExpense, error) {
	verdict, rationale, err := c.askOracle(ctx, e, guidelines, "")
	if err != nil {
		return tax.ClassifiedExpense{}, err
	}

	if verdict != verdictUnresolved {
		return tax.ClassifiedExpense{
			Expense:    e,
			Deductible: verdict == verdictDeductible,
			Rationale:  rationale,
			Source:     tax.EvidenceGuideline,
		}, nil
	}

	if c.config.FallbackSearch && c.searcher != nil {
		if ce, ok, err := c.fallback(ctx, e, guidelines); err != nil {
			return tax.ClassifiedExpense{}, err
		} else if ok {
			return ce, nil
		}
	}

	// Never silently allow an unverified deduction.
	return tax.ClassifiedExpense{
		Expense:    e,
		Deductible: false,
		Rationale:  insufficientEvidence,
		Source:     tax.EvidenceUnresolved,
	}, nil
}

// fallback searches the web for the expense description and re-grounds
// the oracle with the top snippet. Search failure is non-fatal; a still
// unresolved verdict reports ok=false so the fail-safe default applies.
func (c *Classifier) fallback(ctx context.Context, e tax.Expense, guidelines string) (tax.ClassifiedExpense, bool, error) {
	query := fmt.Sprintf("is %q a tax deductible rental expense", e.Description)
	if e.Description == "" {
		query = fmt.Sprintf("is %s a tax deductible rental expense", e.Category)
	}

	result, err := c.searcher.Search(ctx, query)
	if err != nil {
		if errors.Is(err, research.ErrResearchUnavailable) {
			c.logger.Warn("research tool unavailable, applying fail-safe default",
				zap.String("category", string(e.Category)),
				zap.Error(err),
			)
			return tax.ClassifiedExpense{}, false, nil
		}
		return tax.ClassifiedExpense{}, false, err
	}
	if result == nil {
		return tax.ClassifiedExpense{}, false, nil
	}

	evidence := fmt.Sprintf("%s\n%s (%s)", result.Title, result.Snippet, result.Link)
	verdict, rationale, err := c.askOracle(ctx, e, guidelines, evidence)
	if err != nil {
		return tax.ClassifiedExpense{}, false, err
	}
	if verdict == verdictUnresolved {
		return tax.ClassifiedExpense{}, false, nil
	}

	return tax.ClassifiedExpense{
		Expense:    e,
		Deductible: verdict == verdictDeductible,
		Rationale:  rationale,
		Source:     tax.EvidenceWebSearch,
	}, true, nil
}

// askOracle issues one grounded classification call and parses the
// verdict protocol from its reply.
func (c *Classifier) askOracle(ctx context.Context, e tax.Expense, guidelines, extraEvidence string) (string, string, error) {
	prompt := buildClassificationPrompt(e, guidelines, extraEvidence)
	reply, err := c.oracle.Complete(ctx, prompt)
	if err != nil {
		return "", "", err
	}
	verdict, rationale := parseVerdict(reply)
	return verdict, rationale, nil
}

func joinPassages(passages []knowledge.Passage) string {
	var b strings.Builder
	for i, p := range passages {
		fmt.Fprintf(&b, "Guideline %d:\n%s\n\n", i+1, p.Content)
	}
	return b.String()
}

// buildClassificationPrompt assembles the grounding context for one
// expense. The oracle is asked only for a verdict and rationale, never
// for any computation.
func buildClassificationPrompt(e tax.Expense, guidelines, extraEvidence string) string {
	var b strings.Builder
	b.WriteString("You are a tax deduction specialist for residential rental income.\n")
	b.WriteString("Only expenses incurred exclusively for producing rental income are deductible.\n\n")
	if guidelines != "" {
		b.WriteString("Tax guidelines reference:\n")
		b.WriteString(guidelines)
		b.WriteString("\n")
	}
	if extraEvidence != "" {
		b.WriteString("Additional research evidence:\n")
		b.WriteString(extraEvidence)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Expense under review:\n- category: %s\n- amount: %s\n- description: %s\n\n",
		e.Category, e.Amount, e.Description)
	b.WriteString("Reply with exactly two lines:\n")
	fmt.Fprintf(&b, "VERDICT: one of %s, %s or %s (use %s only if the guidelines and evidence do not settle it)\n",
		verdictDeductible, verdictNonDeductible, verdictUnresolved, verdictUnresolved)
	b.WriteString("RATIONALE: one sentence citing the relevant guideline\n")
	return b.String()
}

// parseVerdict extracts the verdict marker and rationale from an oracle
// reply. Anything unrecognizable is treated as unresolved rather than
// guessed at.
func parseVerdict(reply string) (verdict, rationale string) {
	verdict = verdictUnresolved
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "VERDICT:"):
			v := strings.TrimSpace(upper[len("VERDICT:"):])
			// NON_DEDUCTIBLE contains DEDUCTIBLE, check it first.
			switch {
			case strings.HasPrefix(v, verdictNonDeductible):
				verdict = verdictNonDeductible
			case strings.HasPrefix(v, verdictDeductible):
				verdict = verdictDeductible
			case strings.HasPrefix(v, verdictUnresolved):
				verdict = verdictUnresolved
			}
		case strings.HasPrefix(upper, "RATIONALE:"):
			rationale = strings.TrimSpace(line[len("RATIONALE:"):])
		}
	}
	return verdict, rationale
}
