package tax

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidateProperties validates a full property set before any external
// dependency is invoked. Returns the first validation failure found.
func ValidateProperties(props []Property) error {
	if len(props) == 0 {
		return ErrEmptyPropertySet
	}
	for i := range props {
		if err := props[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single property's invariants.
func (p Property) Validate() error {
	if p.GrossRentalIncome.IsNegative() {
		return fmt.Errorf("%w: property %d: gross rental income is negative", ErrInvalidProperty, p.ID)
	}
	if p.IsCoOwned {
		if p.OwnershipShare.IsNegative() || p.OwnershipShare.Cmp(hundred) > 0 {
			return fmt.Errorf("%w: property %d: share %s not in [0,100]",
				ErrInvalidOwnershipShare, p.ID, p.OwnershipShare)
		}
	}
	for j, e := range p.Expenses {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("property %d expense %d: %w", p.ID, j+1, err)
		}
	}
	return nil
}

// Validate checks a single expense's invariants. An "other" expense with
// no description is a hard error: a headless pipeline cannot warn and
// proceed the way an interactive form can.
func (e Expense) Validate() error {
	if !e.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, e.Category)
	}
	if e.Amount.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidExpense, e.Amount)
	}
	if e.Category == CategoryOther && e.Description == "" {
		return fmt.Errorf("%w: category %q requires a description", ErrInvalidExpense, CategoryOther)
	}
	return nil
}

// EffectiveShare returns the ownership share to apply as a fraction in
// [0,1]. Non-co-owned properties always get 1.
func (p Property) EffectiveShare() decimal.Decimal {
	if !p.IsCoOwned {
		return decimal.NewFromInt(1)
	}
	return p.OwnershipShare.Div(hundred)
}

// AppliedShare returns the share as a literal percentage for reporting.
func (p Property) AppliedShare() decimal.Decimal {
	if !p.IsCoOwned {
		return hundred
	}
	return p.OwnershipShare
}
