package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distriplus/backend/internal/domain/product"
)

func TestStockAdjustments(t *testing.T) {
	tests := []struct {
		name   string
		oldQty map[string]int
		newQty map[string]int
		want   map[string]int
	}{
		{
			name:   "quantity increase",
			oldQty: map[string]int{"a": 2},
			newQty: map[string]int{"a": 5},
			want:   map[string]int{"a": 3},
		},
		{
			name:   "quantity decrease",
			oldQty: map[string]int{"a": 5},
			newQty: map[string]int{"a": 2},
			want:   map[string]int{"a": -3},
		},
		{
			name:   "unchanged quantities omitted",
			oldQty: map[string]int{"a": 2, "b": 1},
			newQty: map[string]int{"a": 1, "b": 1},
			want:   map[string]int{"a": -1},
		},
		{
			name:   "removed item returns full quantity",
			oldQty: map[string]int{"a": 2, "b": 4},
			newQty: map[string]int{"a": 2},
			want:   map[string]int{"b": -4},
		},
		{
			name:   "added item consumes full quantity",
			oldQty: map[string]int{"a": 2},
			newQty: map[string]int{"a": 2, "c": 3},
			want:   map[string]int{"c": 3},
		},
		{
			name:   "empty sets",
			oldQty: map[string]int{},
			newQty: map[string]int{},
			want:   map[string]int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StockAdjustments(tt.oldQty, tt.newQty))
		})
	}
}

func TestValidateAvailability_EnoughStock(t *testing.T) {
	products := map[string]*product.Product{
		"a": {ID: "a", Name: "YERBA", Stock: 5},
		"b": {ID: "b", Name: "AZUCAR", Stock: 1},
	}

	err := ValidateAvailability(map[string]int{"a": 5, "b": -3}, products)
	assert.NoError(t, err)
}

func TestValidateAvailability_InsufficientStock(t *testing.T) {
	products := map[string]*product.Product{
		"a": {ID: "a", Name: "YERBA", Stock: 2},
	}

	err := ValidateAvailability(map[string]int{"a": 3}, products)

	var insufficientErr *InsufficientStockError
	require.ErrorAs(t, err, &insufficientErr)
	assert.Equal(t, "YERBA", insufficientErr.Product)
	assert.Equal(t, 3, insufficientErr.Required)
	assert.Equal(t, 2, insufficientErr.Available)
}

func TestValidateAvailability_MissingProduct(t *testing.T) {
	err := ValidateAvailability(map[string]int{"ghost": 1}, map[string]*product.Product{})

	var notFoundErr *product.NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	assert.Equal(t, "ghost", notFoundErr.ProductID)
}

func TestValidateAvailability_NegativeDeltasNeedNoStock(t *testing.T) {
	// Returning stock never requires a precondition, even for products
	// missing from the fetch.
	err := ValidateAvailability(map[string]int{"a": -10}, map[string]*product.Product{})
	assert.NoError(t, err)
}

func TestValidateAvailability_DeterministicFailure(t *testing.T) {
	// Two failing products: the lexicographically first is always reported.
	products := map[string]*product.Product{
		"a": {ID: "a", Name: "FIRST", Stock: 0},
		"b": {ID: "b", Name: "SECOND", Stock: 0},
	}

	for range 10 {
		err := ValidateAvailability(map[string]int{"a": 1, "b": 1}, products)
		var insufficientErr *InsufficientStockError
		require.ErrorAs(t, err, &insufficientErr)
		assert.Equal(t, "FIRST", insufficientErr.Product)
	}
}
