package pipeline_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxease/rentadvisor/internal/advisor"
	"github.com/taxease/rentadvisor/internal/classifier"
	"github.com/taxease/rentadvisor/internal/oracle"
	"github.com/taxease/rentadvisor/internal/pipeline"
	"github.com/taxease/rentadvisor/internal/tax"
)

// passthroughClassifier marks every expense deductible without any
// external calls, and counts invocations.
type passthroughClassifier struct {
	calls atomic.Int32
	err   error
}

func (f *passthroughClassifier) ClassifyAll(ctx context.Context, props []tax.Property) ([]tax.ClassifiedProperty, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]tax.ClassifiedProperty, len(props))
	for i, p := range props {
		out[i] = tax.ClassifiedProperty{Property: p}
		for _, e := range p.Expenses {
			out[i].Expenses = append(out[i].Expenses, tax.ClassifiedExpense{
				Expense: e, Deductible: true, Source: tax.EvidenceGuideline,
			})
		}
	}
	return out, nil
}

// deterministicAdvisor recommends without retrieval or narration.
type deterministicAdvisor struct {
	calls atomic.Int32
	err   error
}

func (f *deterministicAdvisor) Advise(ctx context.Context, actual, simplified tax.AggregateResult) (tax.AnalysisReport, error) {
	f.calls.Add(1)
	if f.err != nil {
		return tax.AnalysisReport{}, f.err
	}
	return tax.AnalysisReport{
		Actual:      actual,
		Simplified:  simplified,
		Recommended: advisor.Recommend(actual, simplified),
		Narrative:   "stub narrative",
	}, nil
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func validProps() []tax.Property {
	return []tax.Property{{
		ID:                1,
		GrossRentalIncome: dec("60000"),
		Expenses: []tax.Expense{
			{Category: tax.CategoryMortgageInterest, Amount: dec("12000")},
		},
	}}
}

func TestRun_HappyPath(t *testing.T) {
	p := pipeline.New(&passthroughClassifier{}, tax.NewEngine(), &deterministicAdvisor{}, nil)

	report, err := p.Run(context.Background(), validProps())
	require.NoError(t, err)

	// Actual: 60000 - 12000 = 48000. Simplified: 60000 - 12000 - 9000 = 39000.
	assert.True(t, report.Actual.TotalTaxableRent.Equal(dec("48000")))
	assert.True(t, report.Simplified.TotalTaxableRent.Equal(dec("39000")))
	assert.Equal(t, tax.RecommendSimplified, report.Recommended)
}

func TestRun_ValidationBeforeAnyStage(t *testing.T) {
	cls := &passthroughClassifier{}
	adv := &deterministicAdvisor{}
	p := pipeline.New(cls, tax.NewEngine(), adv, nil)

	tests := []struct {
		name    string
		props   []tax.Property
		wantErr error
	}{
		{"empty set", nil, tax.ErrEmptyPropertySet},
		{
			"other without description",
			[]tax.Property{{ID: 1, GrossRentalIncome: dec("100"), Expenses: []tax.Expense{
				{Category: tax.CategoryOther, Amount: dec("10")},
			}}},
			tax.ErrInvalidExpense,
		},
		{
			"bad share",
			[]tax.Property{{ID: 1, GrossRentalIncome: dec("100"), IsCoOwned: true, OwnershipShare: dec("150")}},
			tax.ErrInvalidOwnershipShare,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Run(context.Background(), tt.props)
			require.ErrorIs(t, err, tt.wantErr)

			var re *pipeline.RunError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, pipeline.StateInit, re.State)
		})
	}
	// No stage was ever invoked for invalid input.
	assert.Equal(t, int32(0), cls.calls.Load())
	assert.Equal(t, int32(0), adv.calls.Load())
}

func TestRun_ClassificationFailureIsTerminal(t *testing.T) {
	cls := &passthroughClassifier{err: &classifier.Error{Failures: map[int]error{1: oracle.ErrOracleFailure}}}
	adv := &deterministicAdvisor{}
	p := pipeline.New(cls, tax.NewEngine(), adv, nil)

	_, err := p.Run(context.Background(), validProps())
	require.Error(t, err)
	assert.True(t, pipeline.IsClassificationFailed(err))

	var cerr *classifier.Error
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, []int{1}, cerr.PropertyIDs())
	assert.Equal(t, int32(0), adv.calls.Load(), "no partial report after classification failure")
}

func TestRun_AdvisorFailure(t *testing.T) {
	adv := &deterministicAdvisor{err: fmt.Errorf("index down")}
	p := pipeline.New(&passthroughClassifier{}, tax.NewEngine(), adv, nil)

	_, err := p.Run(context.Background(), validProps())
	var re *pipeline.RunError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, pipeline.StateReportFailed, re.State)
}

func TestRun_Idempotent(t *testing.T) {
	p := pipeline.New(&passthroughClassifier{}, tax.NewEngine(), &deterministicAdvisor{}, nil)

	first, err := p.Run(context.Background(), validProps())
	require.NoError(t, err)
	second, err := p.Run(context.Background(), validProps())
	require.NoError(t, err)

	assert.True(t, first.Actual.TotalTaxableRent.Equal(second.Actual.TotalTaxableRent))
	assert.True(t, first.Simplified.TotalTaxableRent.Equal(second.Simplified.TotalTaxableRent))
	assert.Equal(t, first.Recommended, second.Recommended)
}
