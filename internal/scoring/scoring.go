// Package scoring maps applicant signals to a trust score and the credit
// terms derived from it. Everything here is pure; persistence of the results
// belongs to the credit service.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/joinamana/amana-backend/pkg/enums"
)

const (
	maxScore          = 100
	maxPsychometric   = 75
	minScoreForCredit = 40
	limitPerPoint     = 600
	maxCreditLimit    = 60000
	markupFloor       = 4.0
)

// Capital bands reported during onboarding.
const (
	CapitalBandHigh   = "high"
	CapitalBandMedium = "medium"
	CapitalBandLow    = "low"
)

// BusinessSignals carries the onboarding facts that feed the initial score.
type BusinessSignals struct {
	YearsInBusiness int
	HasShopLocation bool
	CapitalBand     string
}

// CalculateInitialScore combines three independently capped buckets: the
// psychometric test normalized to 40 points, business maturity capped at 35,
// and a flat 25-point KYC bonus. Invoking this function implies KYC was
// submitted, so the bonus is unconditional.
func CalculateInitialScore(testScore int, signals BusinessSignals) int {
	if testScore < 0 {
		testScore = 0
	}
	if testScore > maxPsychometric {
		testScore = maxPsychometric
	}

	psychometric := float64(testScore) / maxPsychometric * 40

	business := 0
	switch {
	case signals.YearsInBusiness >= 5:
		business += 15
	case signals.YearsInBusiness >= 2:
		business += 10
	case signals.YearsInBusiness >= 1:
		business += 5
	}
	if signals.HasShopLocation {
		business += 10
	}
	switch signals.CapitalBand {
	case CapitalBandHigh:
		business += 10
	case CapitalBandMedium:
		business += 5
	}
	if business > 35 {
		business = 35
	}

	score := int(math.Round(psychometric)) + business + 25
	if score > maxScore {
		score = maxScore
	}
	return score
}

// DetermineCreditLimit converts a trust score into a naira limit. Applicants
// below the gate get no credit at all.
func DetermineCreditLimit(score int) float64 {
	if score < minScoreForCredit {
		return 0
	}
	limit := float64(score) * limitPerPoint
	if limit > maxCreditLimit {
		limit = maxCreditLimit
	}
	return limit
}

// DetermineTier buckets the score for display and eligibility framing. The
// markup bands below intentionally re-threshold the raw score instead of
// delegating here.
func DetermineTier(score int) enums.Tier {
	switch {
	case score >= 75:
		return enums.TierGold
	case score >= 50:
		return enums.TierSilver
	default:
		return enums.TierBronze
	}
}

// DetermineMarkup returns the markup percentage for a score and repayment
// term. Shorter terms earn a discount multiplier, but the rate never drops
// below the floor.
func DetermineMarkup(score, termDays int) float64 {
	var base decimal.Decimal
	switch {
	case score >= 80:
		base = decimal.NewFromFloat(5.0)
	case score >= 60:
		base = decimal.NewFromFloat(8.0)
	case score >= 40:
		base = decimal.NewFromFloat(12.0)
	default:
		base = decimal.NewFromFloat(15.0)
	}

	var multiplier decimal.Decimal
	switch {
	case termDays <= 3:
		multiplier = decimal.NewFromFloat(0.5)
	case termDays <= 7:
		multiplier = decimal.NewFromFloat(0.75)
	default:
		multiplier = decimal.NewFromInt(1)
	}

	rate := base.Mul(multiplier).Round(2)
	floor := decimal.NewFromFloat(markupFloor)
	if rate.LessThan(floor) {
		rate = floor
	}
	return rate.InexactFloat64()
}

// ScoreGrowth applies the per-repayment trust increment. Streak bonuses are
// additive: a streak of 12 yields 2+1+2.
func ScoreGrowth(currentScore, streak int) int {
	growth := 2
	if streak > 3 {
		growth++
	}
	if streak > 10 {
		growth += 2
	}
	score := currentScore + growth
	if score > maxScore {
		score = maxScore
	}
	return score
}

// MarkupAmount computes the markup on a principal at the given percentage
// rate, rounded to two decimal places.
func MarkupAmount(principal, rate float64) float64 {
	return decimal.NewFromFloat(principal).
		Mul(decimal.NewFromFloat(rate)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}
