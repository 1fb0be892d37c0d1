package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func fptr(f float64) *float64 { return &f }

func TestValidateTargets(t *testing.T) {
	require.NoError(t, ValidateTargets(0.60, fptr(0.75), fptr(0.45)))
	require.NoError(t, ValidateTargets(0.60, fptr(0.75), nil))
	require.NoError(t, ValidateTargets(0.60, nil, fptr(0.45)))

	require.ErrorIs(t, ValidateTargets(0.60, nil, nil), ErrInvalidTargets)
	require.ErrorIs(t, ValidateTargets(0.60, fptr(0.60), nil), ErrInvalidTargets)
	require.ErrorIs(t, ValidateTargets(0.60, fptr(0.50), nil), ErrInvalidTargets)
	require.ErrorIs(t, ValidateTargets(0.60, nil, fptr(0.60)), ErrInvalidTargets)
	require.ErrorIs(t, ValidateTargets(0.60, nil, fptr(0.70)), ErrInvalidTargets)
}

func TestEvaluate(t *testing.T) {
	o := MonitoredOrder{
		EntryPrice:      0.60,
		TakeProfitPrice: fptr(0.75),
		StopLossPrice:   fptr(0.45),
	}

	require.Nil(t, o.Evaluate(0.60))
	require.Nil(t, o.Evaluate(0.7499))
	require.Nil(t, o.Evaluate(0.4501))

	// Targets are inclusive.
	require.Equal(t, TriggerTakeProfit, *o.Evaluate(0.75))
	require.Equal(t, TriggerStopLoss, *o.Evaluate(0.45))
	require.Equal(t, TriggerTakeProfit, *o.Evaluate(0.99))
	require.Equal(t, TriggerStopLoss, *o.Evaluate(0.01))
}

func TestEvaluateSingleTarget(t *testing.T) {
	tpOnly := MonitoredOrder{EntryPrice: 0.60, TakeProfitPrice: fptr(0.75)}
	require.Nil(t, tpOnly.Evaluate(0.01))
	require.NotNil(t, tpOnly.Evaluate(0.80))

	slOnly := MonitoredOrder{EntryPrice: 0.60, StopLossPrice: fptr(0.45)}
	require.Nil(t, slOnly.Evaluate(0.99))
	require.NotNil(t, slOnly.Evaluate(0.40))
}

func TestApplyBuyWeightedAverage(t *testing.T) {
	o := MonitoredOrder{
		EntryPrice:        0.60,
		TakeProfitPrice:   fptr(0.75),
		StopLossPrice:     fptr(0.45),
		MonitoredQuantity: 100,
	}

	require.NoError(t, o.ApplyBuy(50, 0.80))

	require.InDelta(t, 0.6667, o.EntryPrice, 0.0001)
	require.InDelta(t, 150, o.MonitoredQuantity, 1e-9)
	require.InDelta(t, 0.8334, *o.TakeProfitPrice, 0.0001)
	require.InDelta(t, 0.5000, *o.StopLossPrice, 0.0001)
}

func TestApplyBuyPreservesOffsetPercentages(t *testing.T) {
	o := MonitoredOrder{
		EntryPrice:        0.40,
		TakeProfitPrice:   fptr(0.50), // +25%
		StopLossPrice:     fptr(0.30), // -25%
		MonitoredQuantity: 10,
	}

	require.NoError(t, o.ApplyBuy(30, 0.20))

	require.InDelta(t, 1.25, *o.TakeProfitPrice/o.EntryPrice, 1e-9)
	require.InDelta(t, 0.75, *o.StopLossPrice/o.EntryPrice, 1e-9)
}

func TestApplyBuyRejectsBadInput(t *testing.T) {
	o := MonitoredOrder{EntryPrice: 0.60, MonitoredQuantity: 100}
	require.Error(t, o.ApplyBuy(0, 0.80))
	require.Error(t, o.ApplyBuy(-5, 0.80))

	zeroEntry := MonitoredOrder{MonitoredQuantity: 100}
	require.Error(t, zeroEntry.ApplyBuy(10, 0.80))
}

func TestTerminal(t *testing.T) {
	require.False(t, (&MonitoredOrder{Status: OrderStatusActive}).Terminal())
	require.True(t, (&MonitoredOrder{Status: OrderStatusTriggered}).Terminal())
	require.True(t, (&MonitoredOrder{Status: OrderStatusCancelled}).Terminal())
}
