package trust

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

func TestScore_ReliableSupplier(t *testing.T) {
	a, err := Score(Profile{
		CompletedOrders:  18,
		CancelledOrders:  2,
		AvgResponseHours: 12,
		VerificationTier: TierVerified,
		AccountAgeDays:   200,
	})
	require.NoError(t, err)

	assert.InDelta(t, 96.0, a.TrustScore, 1e-9)
	assert.Equal(t, RiskLow, a.RiskLevel)
	assert.Empty(t, a.Flags)
	assert.InDelta(t, 36.0, a.Components.Completion, 1e-9)
	assert.InDelta(t, 20.0, a.Components.Response, 1e-9)
	assert.InDelta(t, 25.0, a.Components.Verification, 1e-9)
	assert.InDelta(t, 15.0, a.Components.Tenure, 1e-9)
}

func TestScore_RiskySupplierClampedToZero(t *testing.T) {
	a, err := Score(Profile{
		CompletedOrders:  1,
		CancelledOrders:  5,
		DisputedOrders:   3,
		AvgResponseHours: 90,
		VerificationTier: TierUnverified,
		AccountAgeDays:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, 0.0, a.TrustScore)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.Equal(t, []Flag{FlagHighDisputeRate, FlagSlowResponder}, a.Flags)
	assert.InDelta(t, 24.0, a.Components.DisputePenalty, 1e-9)
}

func TestScore_NewAccount(t *testing.T) {
	a, err := Score(Profile{VerificationTier: TierPending, NoRecentOrders: true})
	require.NoError(t, err)

	// 0 завершения + 20 ответ + 10 pending + 0 стаж
	assert.InDelta(t, 30.0, a.TrustScore, 1e-9)
	assert.Equal(t, RiskHigh, a.RiskLevel)
	assert.Equal(t, []Flag{FlagInactive}, a.Flags)
}

func TestScore_ResponseCurve(t *testing.T) {
	tests := []struct {
		hours    float64
		expected float64
	}{
		{0, 20},
		{24, 20},
		{48, 10},
		{60, 5},
		{72, 0},
		{200, 0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.expected, responseComponent(tt.hours), 1e-9, "hours=%v", tt.hours)
	}
}

func TestScore_RiskThresholds(t *testing.T) {
	assert.Equal(t, RiskLow, riskLevel(70))
	assert.Equal(t, RiskMedium, riskLevel(69.99))
	assert.Equal(t, RiskMedium, riskLevel(40))
	assert.Equal(t, RiskHigh, riskLevel(39.99))
}

func TestScore_RiskLevelUsesRoundedScore(t *testing.T) {
	base := Profile{CompletedOrders: 1, CancelledOrders: 1, VerificationTier: TierVerified, AccountAgeDays: 180}

	base.AvgResponseHours = 48.0096
	a, err := Score(base)
	require.NoError(t, err)
	assert.Equal(t, 70.0, a.TrustScore)
	assert.Equal(t, RiskLow, a.RiskLevel)

	base.AvgResponseHours = 48.0144
	a, err = Score(base)
	require.NoError(t, err)
	assert.Equal(t, 69.99, a.TrustScore)
	assert.Equal(t, RiskMedium, a.RiskLevel)
}

func TestScore_DisputePenaltyCapped(t *testing.T) {
	base := Profile{CompletedOrders: 100, AvgResponseHours: 1, VerificationTier: TierVerified, AccountAgeDays: 365}

	base.DisputedOrders = 4
	four, err := Score(base)
	require.NoError(t, err)

	base.DisputedOrders = 40
	forty, err := Score(base)
	require.NoError(t, err)

	assert.InDelta(t, 30.0, four.Components.DisputePenalty, 1e-9)
	assert.Equal(t, four.TrustScore, forty.TrustScore)
	assert.False(t, four.HasFlag(FlagHighDisputeRate))
	assert.True(t, forty.HasFlag(FlagHighDisputeRate))
}

func TestScore_Monotonic(t *testing.T) {
	base := Profile{CompletedOrders: 5, CancelledOrders: 3, DisputedOrders: 1, AvgResponseHours: 30, VerificationTier: TierPending, AccountAgeDays: 60}
	ref, err := Score(base)
	require.NoError(t, err)

	better := []func(p *Profile){
		func(p *Profile) { p.CompletedOrders++ },
		func(p *Profile) { p.AvgResponseHours = 20 },
		func(p *Profile) { p.VerificationTier = TierVerified },
		func(p *Profile) { p.AccountAgeDays = 120 },
	}
	for i, mutate := range better {
		p := base
		mutate(&p)
		a, err := Score(p)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a.TrustScore, ref.TrustScore, "case %d", i)
	}

	worse := base
	worse.DisputedOrders = 2
	a, err := Score(worse)
	require.NoError(t, err)
	assert.LessOrEqual(t, a.TrustScore, ref.TrustScore)
}

func TestScore_RoundedAndBounded(t *testing.T) {
	a, err := Score(Profile{CompletedOrders: 2, CancelledOrders: 1, AvgResponseHours: 37, VerificationTier: TierUnverified, AccountAgeDays: 7})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, a.TrustScore, 0.0)
	assert.LessOrEqual(t, a.TrustScore, 100.0)
	assert.InDelta(t, a.TrustScore, math.Round(a.TrustScore*100)/100, 1e-12)
}

func TestScore_InvalidProfile(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
	}{
		{"negative completed", Profile{CompletedOrders: -1, VerificationTier: TierVerified}},
		{"negative disputes", Profile{DisputedOrders: -2, VerificationTier: TierVerified}},
		{"negative age", Profile{AccountAgeDays: -1, VerificationTier: TierVerified}},
		{"negative hours", Profile{AvgResponseHours: -1, VerificationTier: TierVerified}},
		{"nan hours", Profile{AvgResponseHours: math.NaN(), VerificationTier: TierVerified}},
		{"unknown tier", Profile{VerificationTier: "gold"}},
		{"empty tier", Profile{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Score(tt.profile)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperror.ErrInvalidProfile))
		})
	}
}
