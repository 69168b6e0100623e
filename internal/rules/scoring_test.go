package rules

import "testing"

func TestComputeRoundScoreSunScenario(t *testing.T) {
	t.Parallel()
	// S2: both teams win 4 tricks, abnat us=67, them=63, bidder=us.
	result := ComputeRoundScore(RoundScoreParams{
		Mode:               Sun,
		BidderTeam:         0,
		BidderAbnat:        67,
		DefenderAbnat:      63,
		KabootTeam:         -1,
		DoublingMultiplier: 1,
	})

	if result.BidderGP != 14 || result.DefenderGP != 12 {
		t.Errorf("expected 14/12, got %d/%d", result.BidderGP, result.DefenderGP)
	}
	if result.BidderGP+result.DefenderGP != 26 {
		t.Errorf("SUN pool must sum to 26, got %d", result.BidderGP+result.DefenderGP)
	}
}

func TestComputeRoundScoreHokumKaboot(t *testing.T) {
	t.Parallel()
	// S3: defender team (team 1) sweeps all 8 tricks, bidder=team1 too per
	// scenario text ("bidder = them"): bidder and kaboot team coincide here.
	result := ComputeRoundScore(RoundScoreParams{
		Mode:               Hokum,
		BidderTeam:         1,
		BidderAbnat:        162,
		DefenderAbnat:      0,
		KabootTeam:         1,
		DoublingMultiplier: 1,
	})

	if result.BidderGP != 25 || result.DefenderGP != 0 {
		t.Errorf("expected bidder (kaboot team) GP 25/0, got %d/%d", result.BidderGP, result.DefenderGP)
	}
}

func TestComputeRoundScoreKhasara(t *testing.T) {
	t.Parallel()
	// S4: SUN, bidder=us, us abnat=40, them=90 → khasara, defenders take pool.
	result := ComputeRoundScore(RoundScoreParams{
		Mode:               Sun,
		BidderTeam:         0,
		BidderAbnat:        40,
		DefenderAbnat:      90,
		KabootTeam:         -1,
		DoublingMultiplier: 1,
	})

	if result.BidderGP != 0 || result.DefenderGP != 26 {
		t.Errorf("expected khasara 0/26, got %d/%d", result.BidderGP, result.DefenderGP)
	}
}

func TestComputeRoundScoreDoublingMultiplier(t *testing.T) {
	t.Parallel()
	result := ComputeRoundScore(RoundScoreParams{
		Mode:               Sun,
		BidderTeam:         0,
		BidderAbnat:        67,
		DefenderAbnat:      63,
		KabootTeam:         -1,
		DoublingMultiplier: 2,
	})

	if result.BidderGP != 28 || result.DefenderGP != 24 {
		t.Errorf("doubling should scale GP, got %d/%d", result.BidderGP, result.DefenderGP)
	}
}

func TestComputeRoundScoreBalootSurvivesKhasara(t *testing.T) {
	t.Parallel()
	result := ComputeRoundScore(RoundScoreParams{
		Mode:               Sun,
		BidderTeam:         0,
		BidderAbnat:        40,
		DefenderAbnat:      90,
		KabootTeam:         -1,
		DoublingMultiplier: 1,
		BidderHasBaloot:    true,
	})

	if result.BidderGP != 2 {
		t.Errorf("Baloot's +2 should survive khasara for its owning team, got %d", result.BidderGP)
	}
	if result.DefenderGP != 26 {
		t.Errorf("defender should still take the full pool, got %d", result.DefenderGP)
	}
}

func TestComputeRoundScoreGahwaEndsMatchInstantly(t *testing.T) {
	t.Parallel()
	result := ComputeRoundScore(RoundScoreParams{
		Mode:             Hokum,
		GahwaCalled:      true,
		GahwaCallingTeam: 1,
	})

	if !result.MatchOver || result.MatchLoserTeam != 1 {
		t.Errorf("GAHWA should instantly end the match for the calling team, got %+v", result)
	}
}

func TestSunAbnatToGPRoundHalfToEven(t *testing.T) {
	t.Parallel()
	cases := []struct {
		abnat int
		want  int
	}{
		{abnat: 65, want: 12}, // remainder exactly 5, tens=6 even → stays 6 → 12
		{abnat: 75, want: 16}, // remainder exactly 5, tens=7 odd → rounds to 8 → 16
		{abnat: 67, want: 14},
		{abnat: 63, want: 12},
	}
	for _, c := range cases {
		if got := sunAbnatToGP(c.abnat); got != c.want {
			t.Errorf("sunAbnatToGP(%d) = %d, want %d", c.abnat, got, c.want)
		}
	}
}
