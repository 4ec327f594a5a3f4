// Package tax defines the rental income data model and the dual-method
// taxable rent computation engine.
package tax

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Sentinel errors for input validation and computation.
var (
	// ErrEmptyPropertySet is returned when no properties are supplied.
	ErrEmptyPropertySet = errors.New("empty property set")

	// ErrInvalidOwnershipShare is returned when a co-owned property's
	// ownership share is outside [0,100].
	ErrInvalidOwnershipShare = errors.New("invalid ownership share")

	// ErrInvalidExpense indicates an expense that fails validation.
	ErrInvalidExpense = errors.New("invalid expense")

	// ErrInvalidProperty indicates a property that fails validation.
	ErrInvalidProperty = errors.New("invalid property")
)

// Category identifies the declared type of a rental expense.
type Category string

const (
	CategoryPropertyTax      Category = "property_tax"
	CategoryMortgageInterest Category = "mortgage_interest"
	CategoryFireInsurance    Category = "fire_insurance"
	CategoryMaintenanceFee   Category = "maintenance_fee"
	CategoryRepairs          Category = "repairs"
	CategoryAgentCommission  Category = "agent_commission"
	CategoryOther            Category = "other"
)

// Valid reports whether c is a known expense category.
func (c Category) Valid() bool {
	switch c {
	case CategoryPropertyTax, CategoryMortgageInterest, CategoryFireInsurance,
		CategoryMaintenanceFee, CategoryRepairs, CategoryAgentCommission,
		CategoryOther:
		return true
	}
	return false
}

// Method identifies a statutory rental expense claim method.
type Method string

const (
	// MethodActual is the actual expense claims method: itemized
	// deductible expenses are subtracted from gross rental income.
	MethodActual Method = "actual"

	// MethodSimplified is the simplified claims method: full mortgage
	// interest plus a 15% deemed expense allowance, regardless of
	// itemized expenses.
	MethodSimplified Method = "simplified"
)

// EvidenceSource records where a deductibility verdict was grounded.
type EvidenceSource string

const (
	// EvidenceGuideline means the verdict came from retrieved guideline text.
	EvidenceGuideline EvidenceSource = "guideline"

	// EvidenceWebSearch means the verdict needed a web search to resolve.
	EvidenceWebSearch EvidenceSource = "web_search"

	// EvidenceUnresolved means no evidence could resolve the verdict and
	// the fail-safe non-deductible default was applied.
	EvidenceUnresolved EvidenceSource = "unresolved"
)

// Expense is a single declared expense against a property's rental income.
type Expense struct {
	// Category is the declared expense category.
	Category Category `json:"category"`

	// Amount is the expense amount. Must be non-negative.
	Amount decimal.Decimal `json:"amount"`

	// Description is free text. Required when Category is "other".
	Description string `json:"description"`
}

// Property is one rental property declared for a single year of assessment.
type Property struct {
	// ID is the ordinal position of the property within the run, 1-based.
	ID int `json:"id"`

	// GrossRentalIncome is the gross rent received. Must be non-negative.
	GrossRentalIncome decimal.Decimal `json:"gross_rental_income"`

	// IsCoOwned indicates fractional ownership. When false the effective
	// share is 100% and OwnershipShare is ignored.
	IsCoOwned bool `json:"is_co_owned"`

	// OwnershipShare is the owner's share as a literal percentage
	// (20 means 20%). Meaningful only when IsCoOwned is true.
	OwnershipShare decimal.Decimal `json:"ownership_share"`

	// Expenses are the declared expenses, in submission order.
	Expenses []Expense `json:"expenses"`
}

// ClassifiedExpense is an Expense with its deductibility verdict attached.
// Immutable once produced by the classifier.
type ClassifiedExpense struct {
	Expense

	// Deductible is the verdict under the actual expense claims method.
	Deductible bool `json:"deductible"`

	// Rationale explains the verdict.
	Rationale string `json:"rationale"`

	// Source records where the verdict was grounded.
	Source EvidenceSource `json:"evidence_source"`
}

// ClassifiedProperty pairs a property with its classified expenses,
// preserving the original expense order.
type ClassifiedProperty struct {
	Property Property            `json:"property"`
	Expenses []ClassifiedExpense `json:"expenses"`
}

// MethodResult is the taxable rent computation for one property under
// one claim method.
type MethodResult struct {
	Method     Method `json:"method"`
	PropertyID int    `json:"property_id"`

	RentalIncome          decimal.Decimal     `json:"rental_income"`
	DeductibleTotal       decimal.Decimal     `json:"deductible_expense_total"`
	NonDeductibleExpenses []ClassifiedExpense `json:"non_deductible_expenses"`

	// OwnershipShareApplied is the share actually applied, as a literal
	// percentage (100 when not co-owned).
	OwnershipShareApplied decimal.Decimal `json:"ownership_share_applied"`

	// NetBeforeShare is income minus deductions, before applying the share.
	NetBeforeShare decimal.Decimal `json:"net_before_share"`

	// TaxableRent is NetBeforeShare multiplied by the effective share.
	// Negative values are rental losses and are preserved as-is.
	TaxableRent decimal.Decimal `json:"taxable_rent_after_share"`
}

// AggregateResult is the cross-property total for one claim method.
// Per-property losses offset gains; the total may be negative.
type AggregateResult struct {
	Method           Method          `json:"method"`
	TotalTaxableRent decimal.Decimal `json:"total_taxable_rent"`
	PerProperty      []MethodResult  `json:"per_property"`
}

// Recommendation identifies the advised claim method, or a tie.
type Recommendation string

const (
	RecommendActual     Recommendation = "actual"
	RecommendSimplified Recommendation = "simplified"
	RecommendTie        Recommendation = "tie"
)

// AnalysisReport is the terminal artifact of a pipeline run. It is
// returned to the caller for display and is never persisted.
type AnalysisReport struct {
	Actual      AggregateResult `json:"actual"`
	Simplified  AggregateResult `json:"simplified"`
	Recommended Recommendation  `json:"recommended_method"`
	Narrative   string          `json:"narrative"`
}
