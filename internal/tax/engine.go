package tax

import "github.com/shopspring/decimal"

// deemedExpenseRate is the statutory flat-rate allowance under the
// simplified claims method: 15% of gross rental income.
var deemedExpenseRate = decimal.New(15, -2)

// Engine computes taxable rent under both claim methods. It is pure:
// no I/O, no external calls, fully deterministic. Deductibility verdicts
// come in via ClassifiedProperty and are consulted only by the actual
// expense method; the simplified method's deductions are statutory.
type Engine struct{}

// NewEngine returns a computation engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Compute runs both methods across the full classified property set and
// returns one aggregate per method. Input validation is assumed to have
// happened upstream; Compute still rejects the structurally impossible
// cases so it cannot produce garbage on misuse.
func (e *Engine) Compute(props []ClassifiedProperty) (actual, simplified AggregateResult, err error) {
	if len(props) == 0 {
		return AggregateResult{}, AggregateResult{}, ErrEmptyPropertySet
	}
	for i := range props {
		if err := props[i].Property.Validate(); err != nil {
			return AggregateResult{}, AggregateResult{}, err
		}
	}

	actual = AggregateResult{Method: MethodActual, TotalTaxableRent: decimal.Zero}
	simplified = AggregateResult{Method: MethodSimplified, TotalTaxableRent: decimal.Zero}

	for _, cp := range props {
		ar := e.computeActual(cp)
		sr := e.computeSimplified(cp)

		actual.PerProperty = append(actual.PerProperty, ar)
		simplified.PerProperty = append(simplified.PerProperty, sr)

		// Losses stay negative so they offset gains across properties.
		actual.TotalTaxableRent = actual.TotalTaxableRent.Add(ar.TaxableRent)
		simplified.TotalTaxableRent = simplified.TotalTaxableRent.Add(sr.TaxableRent)
	}
	return actual, simplified, nil
}

// computeActual applies the actual expense claims method to one property:
// net = income - sum(deductible expenses), then the ownership share.
func (e *Engine) computeActual(cp ClassifiedProperty) MethodResult {
	p := cp.Property

	deductible := decimal.Zero
	var nonDeductible []ClassifiedExpense
	for _, ce := range cp.Expenses {
		if ce.Deductible {
			deductible = deductible.Add(ce.Amount)
		} else {
			nonDeductible = append(nonDeductible, ce)
		}
	}

	net := p.GrossRentalIncome.Sub(deductible)
	return MethodResult{
		Method:                MethodActual,
		PropertyID:            p.ID,
		RentalIncome:          p.GrossRentalIncome,
		DeductibleTotal:       deductible,
		NonDeductibleExpenses: nonDeductible,
		OwnershipShareApplied: p.AppliedShare(),
		NetBeforeShare:        net,
		TaxableRent:           net.Mul(p.EffectiveShare()),
	}
}

// computeSimplified applies the simplified claims method to one property:
// net = income - mortgage interest - 15% deemed expenses, then the
// ownership share. The mortgage interest deduction is statutory and
// ignores the classifier's verdict on those expenses.
func (e *Engine) computeSimplified(cp ClassifiedProperty) MethodResult {
	p := cp.Property

	mortgage := decimal.Zero
	for _, ce := range cp.Expenses {
		if ce.Category == CategoryMortgageInterest {
			mortgage = mortgage.Add(ce.Amount)
		}
	}
	deemed := p.GrossRentalIncome.Mul(deemedExpenseRate)

	net := p.GrossRentalIncome.Sub(mortgage).Sub(deemed)
	return MethodResult{
		Method:                MethodSimplified,
		PropertyID:            p.ID,
		RentalIncome:          p.GrossRentalIncome,
		DeductibleTotal:       mortgage.Add(deemed),
		OwnershipShareApplied: p.AppliedShare(),
		NetBeforeShare:        net,
		TaxableRent:           net.Mul(p.EffectiveShare()),
	}
}
