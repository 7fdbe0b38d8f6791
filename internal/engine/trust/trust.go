// Package trust считает рейтинг доверия контрагента и уровень риска по агрегатам его поведения.
package trust

import (
	"math"
	"sort"

	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// VerificationTier: уровень проверки компании.
type VerificationTier string

const (
	TierUnverified VerificationTier = "unverified"
	TierPending    VerificationTier = "pending"
	TierVerified   VerificationTier = "verified"
)

func (t VerificationTier) IsValid() bool {
	switch t {
	case TierUnverified, TierPending, TierVerified:
		return true
	}
	return false
}

// RiskLevel: класс риска.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Flag: качественная пометка, не влияющая на рейтинг.
type Flag string

const (
	FlagSlowResponder   Flag = "slow_responder"
	FlagHighDisputeRate Flag = "high_dispute_rate"
	FlagInactive        Flag = "inactive"
)

// Веса и пороги формулы.
const (
	completionWeight   = 40.0
	responseWeight     = 20.0
	tenureWeight       = 15.0
	pendingPoints      = 10.0
	verifiedPoints     = 25.0
	disputePenaltyStep = 8.0
	disputePenaltyCap  = 30.0

	fastResponseHours = 24.0
	deadResponseHours = 72.0
	tenureFullDays    = 180.0

	lowRiskThreshold    = 70.0
	mediumRiskThreshold = 40.0

	slowResponderHours  = 48.0
	highDisputeRateRate = 0.1
)

// Profile: агрегаты поведения контрагента. NoRecentOrders передаёт вызывающая сторона,
// потому что «последние 90 дней» зависят от текущего времени.
type Profile struct {
	CompletedOrders  int              `json:"completed_orders" db:"completed_orders"`
	CancelledOrders  int              `json:"cancelled_orders" db:"cancelled_orders"`
	DisputedOrders   int              `json:"disputed_orders" db:"disputed_orders"`
	AvgResponseHours float64          `json:"avg_response_hours" db:"avg_response_hours"`
	VerificationTier VerificationTier `json:"verification_tier" db:"verification_tier"`
	AccountAgeDays   int              `json:"account_age_days" db:"account_age_days"`
	NoRecentOrders   bool             `json:"no_recent_orders" db:"no_recent_orders"`
}

// Validate проверяет входные агрегаты.
func (p Profile) Validate() error {
	if p.CompletedOrders < 0 || p.CancelledOrders < 0 || p.DisputedOrders < 0 || p.AccountAgeDays < 0 {
		return apperror.New(apperror.ErrCodeInvalidProfile, "счётчики профиля не могут быть отрицательными")
	}
	if math.IsNaN(p.AvgResponseHours) || math.IsInf(p.AvgResponseHours, 0) || p.AvgResponseHours < 0 {
		return apperror.New(apperror.ErrCodeInvalidProfile, "среднее время ответа должно быть неотрицательным числом")
	}
	if !p.VerificationTier.IsValid() {
		return apperror.Newf(apperror.ErrCodeInvalidProfile, "неизвестный уровень верификации %q", p.VerificationTier)
	}
	return nil
}

// Components раскладывает рейтинг по слагаемым формулы.
type Components struct {
	Completion     float64 `json:"completion"`
	Response       float64 `json:"response"`
	Verification   float64 `json:"verification"`
	Tenure         float64 `json:"tenure"`
	DisputePenalty float64 `json:"dispute_penalty"`
}

// Assessment: итог оценки. Всегда полный.
type Assessment struct {
	TrustScore float64    `json:"trust_score"`
	RiskLevel  RiskLevel  `json:"risk_level"`
	Flags      []Flag     `json:"flags"`
	Components Components `json:"components"`
}

// HasFlag сообщает, установлена ли пометка.
func (a Assessment) HasFlag(f Flag) bool {
	for _, flag := range a.Flags {
		if flag == f {
			return true
		}
	}
	return false
}

// Score считает рейтинг доверия 0–100, уровень риска и пометки.
func Score(p Profile) (Assessment, error) {
	if err := p.Validate(); err != nil {
		return Assessment{}, err
	}

	c := Components{
		Completion:     completionComponent(p),
		Response:       responseComponent(p.AvgResponseHours),
		Verification:   verificationComponent(p.VerificationTier),
		Tenure:         math.Min(float64(p.AccountAgeDays)/tenureFullDays, 1) * tenureWeight,
		DisputePenalty: math.Min(float64(p.DisputedOrders)*disputePenaltyStep, disputePenaltyCap),
	}

	raw := c.Completion + c.Response + c.Verification + c.Tenure - c.DisputePenalty
	// Уровень риска определяется по округлённому рейтингу, который видит клиент.
	score := round2(clamp(raw, 0, 100))

	return Assessment{
		TrustScore: score,
		RiskLevel:  riskLevel(score),
		Flags:      flags(p),
		Components: c,
	}, nil
}

func completionComponent(p Profile) float64 {
	total := p.CompletedOrders + p.CancelledOrders
	if total < 1 {
		total = 1
	}
	return float64(p.CompletedOrders) / float64(total) * completionWeight
}

// responseComponent даёт полный балл до 24 часов и линейно снижает его до нуля к 72 часам.
func responseComponent(hours float64) float64 {
	switch {
	case hours <= fastResponseHours:
		return responseWeight
	case hours >= deadResponseHours:
		return 0
	default:
		return responseWeight * (deadResponseHours - hours) / (deadResponseHours - fastResponseHours)
	}
}

func verificationComponent(tier VerificationTier) float64 {
	switch tier {
	case TierVerified:
		return verifiedPoints
	case TierPending:
		return pendingPoints
	default:
		return 0
	}
}

func riskLevel(score float64) RiskLevel {
	switch {
	case score >= lowRiskThreshold:
		return RiskLow
	case score >= mediumRiskThreshold:
		return RiskMedium
	default:
		return RiskHigh
	}
}

func flags(p Profile) []Flag {
	out := make([]Flag, 0, 3)
	if p.AvgResponseHours > slowResponderHours {
		out = append(out, FlagSlowResponder)
	}
	completed := p.CompletedOrders
	if completed < 1 {
		completed = 1
	}
	if float64(p.DisputedOrders)/float64(completed) > highDisputeRateRate {
		out = append(out, FlagHighDisputeRate)
	}
	if p.NoRecentOrders {
		out = append(out, FlagInactive)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
