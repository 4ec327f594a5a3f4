package tax_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/taxease/rentadvisor/internal/tax"
)

func TestValidateProperties(t *testing.T) {
	valid := tax.Property{ID: 1, GrossRentalIncome: dec("1000")}

	tests := []struct {
		name    string
		props   []tax.Property
		wantErr error
	}{
		{
			name:    "empty set",
			props:   nil,
			wantErr: tax.ErrEmptyPropertySet,
		},
		{
			name:  "single valid property",
			props: []tax.Property{valid},
		},
		{
			name: "negative income",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("-1")},
			},
			wantErr: tax.ErrInvalidProperty,
		},
		{
			name: "co-owned share above 100",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("1000"), IsCoOwned: true, OwnershipShare: dec("101")},
			},
			wantErr: tax.ErrInvalidOwnershipShare,
		},
		{
			name: "co-owned share negative",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("1000"), IsCoOwned: true, OwnershipShare: dec("-5")},
			},
			wantErr: tax.ErrInvalidOwnershipShare,
		},
		{
			name: "share out of range ignored when not co-owned",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("1000"), IsCoOwned: false, OwnershipShare: dec("250")},
			},
		},
		{
			name: "other category without description",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("1000"), Expenses: []tax.Expense{
					{Category: tax.CategoryOther, Amount: dec("50")},
				}},
			},
			wantErr: tax.ErrInvalidExpense,
		},
		{
			name: "unknown category",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("1000"), Expenses: []tax.Expense{
					{Category: "stamp_duty", Amount: dec("50")},
				}},
			},
			wantErr: tax.ErrInvalidExpense,
		},
		{
			name: "negative expense amount",
			props: []tax.Property{
				{ID: 1, GrossRentalIncome: dec("1000"), Expenses: []tax.Expense{
					{Category: tax.CategoryRepairs, Amount: dec("-50")},
				}},
			},
			wantErr: tax.ErrInvalidExpense,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tax.ValidateProperties(tt.props)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}
}
