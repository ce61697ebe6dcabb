package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPosition(quantity, avgCost int64) *Position {
	return NewPosition(uuid.New(), "AAPL", AssetClassStock, "Apple Inc.",
		decimal.NewFromInt(quantity), decimal.NewFromInt(avgCost))
}

func TestNewPosition_OpensWithPriceAsAvgCost(t *testing.T) {
	position := newTestPosition(10, 1000)

	assert.Equal(t, PositionStatusOpen, position.Status)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
	assert.True(t, position.AvgCost.Equal(decimal.NewFromInt(1000)))
	assert.Nil(t, position.ClosedAt)
	assert.NoError(t, position.Validate())
}

func TestApplyBuy_RecomputesWeightedAverage(t *testing.T) {
	tests := []struct {
		name        string
		startQty    int64
		startAvg    int64
		buyQty      int64
		buyPrice    int64
		expectedAvg string
		expectedQty string
	}{
		{
			name:     "same price keeps average",
			startQty: 10, startAvg: 1000,
			buyQty: 5, buyPrice: 1000,
			expectedAvg: "1000", expectedQty: "15",
		},
		{
			name:     "higher price raises average",
			startQty: 10, startAvg: 1000,
			buyQty: 10, buyPrice: 1200,
			expectedAvg: "1100", expectedQty: "20",
		},
		{
			name:     "lower price lowers average",
			startQty: 10, startAvg: 1200,
			buyQty: 30, buyPrice: 1000,
			expectedAvg: "1050", expectedQty: "40",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position := newTestPosition(tt.startQty, tt.startAvg)

			err := position.ApplyBuy(decimal.NewFromInt(tt.buyQty), decimal.NewFromInt(tt.buyPrice))

			require.NoError(t, err)
			assert.Equal(t, tt.expectedAvg, position.AvgCost.String())
			assert.Equal(t, tt.expectedQty, position.Quantity.String())
			assert.Equal(t, PositionStatusOpen, position.Status)
		})
	}
}

func TestApplyBuy_NonTerminatingAverageRoundsAtDivisionPrecision(t *testing.T) {
	// 10 @ 1000 plus 3 @ 1005: (10000 + 3015) / 13 does not terminate.
	// The average carries exactly decimal.DivisionPrecision (16) fractional
	// digits, which is the scale the storage columns must accommodate.
	position := newTestPosition(10, 1000)

	err := position.ApplyBuy(decimal.NewFromInt(3), decimal.NewFromInt(1005))

	require.NoError(t, err)
	assert.Equal(t, "1001.1538461538461538", position.AvgCost.String())
	assert.Equal(t, int32(-decimal.DivisionPrecision), position.AvgCost.Exponent())
}

func TestApplyBuy_RejectsNonPositiveQuantity(t *testing.T) {
	position := newTestPosition(10, 1000)

	err := position.ApplyBuy(decimal.Zero, decimal.NewFromInt(1000))

	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestApplySell_PartialKeepsAvgCost(t *testing.T) {
	position := newTestPosition(20, 1100)

	err := position.ApplySell(decimal.NewFromInt(15))

	require.NoError(t, err)
	assert.Equal(t, PositionStatusOpen, position.Status)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(5)))
	assert.True(t, position.AvgCost.Equal(decimal.NewFromInt(1100)), "partial sell must not change avg cost")
	assert.Nil(t, position.ClosedAt)
}

func TestApplySell_FullQuantityClosesPosition(t *testing.T) {
	position := newTestPosition(20, 1100)

	err := position.ApplySell(decimal.NewFromInt(20))

	require.NoError(t, err)
	assert.Equal(t, PositionStatusClosed, position.Status)
	assert.True(t, position.Quantity.IsZero())
	assert.True(t, position.AvgCost.IsZero(), "avg cost is cleared on close")
	require.NotNil(t, position.ClosedAt)
	assert.NoError(t, position.Validate())
}

func TestApplySell_RejectsOverselling(t *testing.T) {
	position := newTestPosition(5, 1000)

	err := position.ApplySell(decimal.NewFromInt(6))

	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.True(t, position.Quantity.Equal(decimal.NewFromInt(5)), "rejection must not mutate quantity")
	assert.Equal(t, PositionStatusOpen, position.Status)
}

func TestClosedPosition_IsTerminal(t *testing.T) {
	position := newTestPosition(1, 1000)
	require.NoError(t, position.ApplySell(decimal.NewFromInt(1)))
	require.Equal(t, PositionStatusClosed, position.Status)

	assert.ErrorIs(t, position.ApplyBuy(decimal.NewFromInt(1), decimal.NewFromInt(1000)), ErrPositionNotFound)
	assert.ErrorIs(t, position.ApplySell(decimal.NewFromInt(1)), ErrPositionNotFound)
}

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *Position)
		wantErr bool
	}{
		{name: "valid open position", mutate: func(p *Position) {}, wantErr: false},
		{name: "empty symbol", mutate: func(p *Position) { p.Symbol = "" }, wantErr: true},
		{name: "unknown asset class", mutate: func(p *Position) { p.AssetClass = "bond" }, wantErr: true},
		{name: "open with zero quantity", mutate: func(p *Position) { p.Quantity = decimal.Zero }, wantErr: true},
		{name: "closed with remaining quantity", mutate: func(p *Position) {
			p.Status = PositionStatusClosed
		}, wantErr: true},
		{name: "unknown status", mutate: func(p *Position) { p.Status = "pending" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			position := newTestPosition(10, 1000)
			tt.mutate(position)

			err := position.Validate()

			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
