package rules

// RoundScoreParams is everything ComputeRoundScore needs to turn a
// completed round's raw trick counts into game points (spec §3 "Scoring").
type RoundScoreParams struct {
	Mode Mode

	// BidderTeam is 0 or 1 and names which team owns the round's bid.
	BidderTeam int

	// BidderAbnat / DefenderAbnat are each team's summed trick points
	// (including the last-trick +10 bonus) before any conversion.
	BidderAbnat   int
	DefenderAbnat int

	// KabootTeam is the team (0 or 1) that swept all 8 tricks, or -1 if
	// neither team did.
	KabootTeam int

	// DoublingMultiplier is the round's doubling level: 1, 2, 3, or 4.
	DoublingMultiplier int

	BidderProjectsGP   int
	DefenderProjectsGP int
	BidderHasBaloot    bool
	DefenderHasBaloot  bool

	// GahwaCalled, when true, ends the match immediately: GahwaCallingTeam
	// loses regardless of any trick or project tally.
	GahwaCalled      bool
	GahwaCallingTeam int
}

// RoundScore is the game-point outcome of one round.
type RoundScore struct {
	BidderGP       int
	DefenderGP     int
	MatchOver      bool
	MatchLoserTeam int
}

// ComputeRoundScore implements the SUN/HOKUM abnat→GP conversion, the
// khasara and Kaboot overrides, the doubling multiplier, and the flat
// Baloot bonus (spec §3 "Scoring", §8 properties 4-5, scenarios S2-S5).
func ComputeRoundScore(p RoundScoreParams) RoundScore {
	if p.GahwaCalled {
		return RoundScore{MatchOver: true, MatchLoserTeam: p.GahwaCallingTeam}
	}

	pool := 26
	kabootFlat := 44
	if p.Mode == Hokum {
		pool = 16
		kabootFlat = 25
	}

	var bidderGP, defenderGP int

	switch {
	case p.KabootTeam == p.BidderTeam && p.KabootTeam >= 0:
		bidderGP, defenderGP = kabootFlat, 0
	case p.KabootTeam >= 0:
		bidderGP, defenderGP = 0, kabootFlat
	default:
		var bidderRaw int
		if p.Mode == Sun {
			bidderRaw = sunAbnatToGP(p.BidderAbnat)
		} else {
			bidderRaw = hokumAbnatToGP(p.BidderAbnat)
		}
		defenderRaw := pool - bidderRaw // pair-symmetric: always derive the
		// partner side as the pool complement so usGP+themGP==pool holds
		// even through the round-half-to-even tie case.

		if bidderRaw <= defenderRaw {
			// khasara: the bidder team failed to cover its own bid.
			bidderGP, defenderGP = 0, pool
		} else {
			bidderGP, defenderGP = bidderRaw, defenderRaw
		}
	}

	mult := p.DoublingMultiplier
	if mult < 1 {
		mult = 1
	}
	bidderGP *= mult
	defenderGP *= mult

	bidderGP += p.BidderProjectsGP
	defenderGP += p.DefenderProjectsGP

	if p.BidderHasBaloot {
		bidderGP += 2
	}
	if p.DefenderHasBaloot {
		defenderGP += 2
	}

	return RoundScore{BidderGP: bidderGP, DefenderGP: defenderGP}
}

// sunAbnatToGP converts SUN-mode abnat to game points: round to the nearest
// 10 (a remainder of exactly 5 rounds toward an even tens digit), then take
// tens*2, which maps the 130-abnat SUN pool onto 26 game points.
func sunAbnatToGP(abnat int) int {
	tens := abnat / 10
	rem := abnat % 10
	switch {
	case rem > 5:
		tens++
	case rem == 5 && tens%2 != 0:
		tens++
	}
	return tens * 2
}

// hokumAbnatToGP converts HOKUM-mode abnat (pool 162) to game points (pool
// 16): round down below a remainder of 6, up from 6 on.
func hokumAbnatToGP(abnat int) int {
	tens := abnat / 10
	if abnat%10 > 5 {
		tens++
	}
	return tens
}
