package maintenance

import (
	"math"
	"testing"

	"github.com/NibirNd/Poly/internal/storage"
)

func TestDetermineWinner(t *testing.T) {
	tests := []struct {
		name     string
		outcomes []string
		prices   []float64
		want     string
	}{
		{"yes wins", []string{"Yes", "No"}, []float64{0.98, 0.02}, "Yes"},
		{"no wins", []string{"Yes", "No"}, []float64{0.01, 0.99}, "No"},
		{"exactly at threshold", []string{"Yes", "No"}, []float64{0.95, 0.05}, "Yes"},
		{"unresolved", []string{"Yes", "No"}, []float64{0.60, 0.40}, ""},
		{"multi outcome", []string{"A", "B", "C"}, []float64{0.01, 0.96, 0.03}, "B"},
		{"length mismatch", []string{"Yes", "No"}, []float64{0.98}, ""},
		{"empty", nil, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineWinner(tt.outcomes, tt.prices); got != tt.want {
				t.Errorf("DetermineWinner = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWalletNetPositions(t *testing.T) {
	records := []storage.ActivityRecord{
		{MakerAddress: "0xaaa", Side: "BUY", Outcome: "Yes", SizeUSD: 1000},
		{MakerAddress: "0xaaa", Side: "SELL", Outcome: "Yes", SizeUSD: 200},
		{MakerAddress: "0xbbb", Side: "BUY", Outcome: "No", SizeUSD: 500},
		{MakerAddress: "0xccc", Side: "SELL", Outcome: "No", SizeUSD: 300},
		{MakerAddress: "0xddd", Side: "BUY", Outcome: "Yes", SizeUSD: 400},
		{MakerAddress: "0xddd", Side: "BUY", Outcome: "No", SizeUSD: 400},
	}

	net := WalletNetPositions(records, "Yes")

	want := map[string]float64{
		"0xaaa": 800,  // long the winner, minus the partial exit
		"0xbbb": -500, // long the loser
		"0xccc": 300,  // short the loser
		"0xddd": 0,    // hedged both ways
	}
	for wallet, wantNet := range want {
		if got := net[wallet]; math.Abs(got-wantNet) > 1e-9 {
			t.Errorf("net[%s] = %v, want %v", wallet, got, wantNet)
		}
	}
}
