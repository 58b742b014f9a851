package scoring

import (
	"testing"

	"github.com/joinamana/amana-backend/pkg/enums"
)

func TestCalculateInitialScore(t *testing.T) {
	tests := []struct {
		name      string
		testScore int
		signals   BusinessSignals
		want      int
	}{
		{
			name:      "perfect applicant capped at 100",
			testScore: 75,
			signals:   BusinessSignals{YearsInBusiness: 6, HasShopLocation: true, CapitalBand: CapitalBandHigh},
			want:      100,
		},
		{
			name:      "zero test score still earns kyc bonus",
			testScore: 0,
			signals:   BusinessSignals{},
			want:      25,
		},
		{
			name:      "business bucket capped at 35",
			testScore: 0,
			signals:   BusinessSignals{YearsInBusiness: 10, HasShopLocation: true, CapitalBand: CapitalBandHigh},
			want:      60,
		},
		{
			name:      "mid-range applicant",
			testScore: 50,
			signals:   BusinessSignals{YearsInBusiness: 2, HasShopLocation: true, CapitalBand: CapitalBandMedium},
			want:      77, // round(50/75*40)=27 + 25 business + 25 kyc
		},
		{
			name:      "test score clamped to 75",
			testScore: 120,
			signals:   BusinessSignals{},
			want:      65,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateInitialScore(tt.testScore, tt.signals); got != tt.want {
				t.Fatalf("expected score %d, got %d", tt.want, got)
			}
		})
	}
}

func TestDetermineCreditLimit(t *testing.T) {
	if got := DetermineCreditLimit(39); got != 0 {
		t.Fatalf("sub-gate score should get no credit, got %v", got)
	}
	if got := DetermineCreditLimit(40); got != 24000 {
		t.Fatalf("expected 24000, got %v", got)
	}
	if got := DetermineCreditLimit(85); got != 51000 {
		t.Fatalf("expected 51000, got %v", got)
	}
	if got := DetermineCreditLimit(100); got != 60000 {
		t.Fatalf("expected cap at 60000, got %v", got)
	}
}

func TestDetermineTier(t *testing.T) {
	if got := DetermineTier(75); got != enums.TierGold {
		t.Fatalf("expected gold at 75, got %s", got)
	}
	if got := DetermineTier(50); got != enums.TierSilver {
		t.Fatalf("expected silver at 50, got %s", got)
	}
	if got := DetermineTier(49); got != enums.TierBronze {
		t.Fatalf("expected bronze at 49, got %s", got)
	}
}

func TestDetermineMarkup(t *testing.T) {
	tests := []struct {
		score    int
		termDays int
		want     float64
	}{
		{score: 85, termDays: 14, want: 5.0},
		{score: 60, termDays: 14, want: 8.0},
		{score: 40, termDays: 14, want: 12.0},
		{score: 10, termDays: 14, want: 15.0},
		{score: 10, termDays: 3, want: 7.5},
		{score: 0, termDays: 3, want: 7.5},
		{score: 85, termDays: 3, want: 4.0}, // 2.5 clamped to floor
		{score: 85, termDays: 7, want: 4.0}, // 3.75 clamped to floor
		{score: 60, termDays: 7, want: 6.0},
		{score: 40, termDays: 3, want: 6.0},
	}

	for _, tt := range tests {
		if got := DetermineMarkup(tt.score, tt.termDays); got != tt.want {
			t.Fatalf("DetermineMarkup(%d, %d) = %v, want %v", tt.score, tt.termDays, got, tt.want)
		}
	}
}

func TestScoreGrowth(t *testing.T) {
	if got := ScoreGrowth(50, 0); got != 52 {
		t.Fatalf("expected flat +2, got %d", got)
	}
	if got := ScoreGrowth(50, 4); got != 53 {
		t.Fatalf("expected +3 with streak above 3, got %d", got)
	}
	if got := ScoreGrowth(50, 12); got != 55 {
		t.Fatalf("expected +5 with streak above 10, got %d", got)
	}
	if got := ScoreGrowth(99, 12); got != 100 {
		t.Fatalf("expected cap at 100, got %d", got)
	}
}

func TestMarkupAmount(t *testing.T) {
	if got := MarkupAmount(10000, 5.0); got != 500 {
		t.Fatalf("expected markup 500, got %v", got)
	}
	if got := MarkupAmount(3333.33, 8.0); got != 266.67 {
		t.Fatalf("expected markup 266.67, got %v", got)
	}
}
