package rules

// ProjectType names a kind of meld declaration (spec §3 detectProjects).
type ProjectType string

const (
	ProjectSira       ProjectType = "SIRA"
	ProjectFifty      ProjectType = "FIFTY"
	ProjectHundred    ProjectType = "HUNDRED"
	ProjectFourHundred ProjectType = "FOUR_HUNDRED"
	ProjectBaloot     ProjectType = "BALOOT"
)

// projectValue is the game-point value of each project type, scaled to the
// round's 26/16-GP pool. Baloot's +2 is a separate flat bonus applied in
// scoring.go, not part of this table.
var projectValue = map[ProjectType]int{
	ProjectSira:        4,
	ProjectFifty:       10,
	ProjectHundred:     20,
	ProjectFourHundred: 40,
}

// Project is one detected or declared meld.
type Project struct {
	Type  ProjectType
	Suit  Suit // meaningless for four-of-a-kind projects
	Cards []Card
	Value int
}

// DetectProjects finds every project a hand qualifies for under mode. A
// FOUR_HUNDRED (four Aces) only qualifies in Sun; BALOOT (K+Q of trump) only
// in Hokum. At most one run-based project is reported per suit (the longest
// run); a second, disjoint run in the same suit is not reported.
func DetectProjects(hand []Card, trumpSuit Suit, mode Mode) []Project {
	var projects []Project

	for s := Clubs; s <= Spades; s++ {
		mask := suitMask(hand, s)
		startRank, length := longestRun(mask)
		if length < 3 {
			continue
		}
		pt := ProjectSira
		switch {
		case length >= 5:
			pt = ProjectHundred
		case length == 4:
			pt = ProjectFifty
		}
		cards := make([]Card, 0, length)
		for r := int(startRank); r < int(startRank)+length; r++ {
			cards = append(cards, Card{Suit: s, Rank: Rank(r)})
		}
		projects = append(projects, Project{Type: pt, Suit: s, Cards: cards, Value: projectValue[pt]})
	}

	for _, r := range []Rank{Ten, Jack, Queen, King} {
		cards := sameRankCards(hand, r)
		if len(cards) == 4 {
			projects = append(projects, Project{Type: ProjectHundred, Cards: cards, Value: projectValue[ProjectHundred]})
		}
	}

	if mode == Sun {
		aces := sameRankCards(hand, Ace)
		if len(aces) == 4 {
			projects = append(projects, Project{Type: ProjectFourHundred, Cards: aces, Value: projectValue[ProjectFourHundred]})
		}
	}

	if mode == Hokum {
		hasKing := contains(hand, Card{Suit: trumpSuit, Rank: King})
		hasQueen := contains(hand, Card{Suit: trumpSuit, Rank: Queen})
		if hasKing && hasQueen {
			projects = append(projects, Project{
				Type:  ProjectBaloot,
				Suit:  trumpSuit,
				Cards: []Card{{Suit: trumpSuit, Rank: King}, {Suit: trumpSuit, Rank: Queen}},
			})
		}
	}

	return projects
}

func suitMask(hand []Card, suit Suit) uint8 {
	var mask uint8
	for _, c := range hand {
		if c.Suit == suit {
			mask |= 1 << uint(c.Rank)
		}
	}
	return mask
}

// longestRun finds the longest run of consecutively-set bits in mask, the
// same "count consecutive set bits" idea a straight detector applies to a
// rank bitmask, just walked directly rather than via a shift-and cascade
// since there are only 8 possible ranks here.
func longestRun(mask uint8) (start Rank, length int) {
	best, bestStart, cur, curStart := 0, 0, 0, 0
	for r := 0; r < numRanks; r++ {
		if mask&(1<<uint(r)) != 0 {
			if cur == 0 {
				curStart = r
			}
			cur++
			if cur > best {
				best, bestStart = cur, curStart
			}
		} else {
			cur = 0
		}
	}
	return Rank(bestStart), best
}

func sameRankCards(hand []Card, rank Rank) []Card {
	var out []Card
	for _, c := range hand {
		if c.Rank == rank {
			out = append(out, c)
		}
	}
	return out
}

// HighestProject returns the highest-value project in ps, or ok=false if ps
// is empty. Ties resolve to the first one encountered.
func HighestProject(ps []Project) (Project, bool) {
	if len(ps) == 0 {
		return Project{}, false
	}
	best := ps[0]
	for _, p := range ps[1:] {
		if p.Value > best.Value {
			best = p
		}
	}
	return best, true
}

// TeamDeclarations is one team's full set of declared projects this round.
type TeamDeclarations struct {
	Team     int // 0 or 1
	Projects []Project
}

// ResolveDeclarationConflicts compares the highest project per team: the
// higher value wins outright and the losing team's non-Baloot projects are
// zeroed (they score nothing); equal highest values cancel both teams'
// non-Baloot projects entirely. Baloot always scores regardless of this
// comparison (spec §3 resolveDeclarationConflicts).
func ResolveDeclarationConflicts(teams [2]TeamDeclarations) (scoredA, scoredB []Project) {
	bestA, okA := HighestProject(nonBaloot(teams[0].Projects))
	bestB, okB := HighestProject(nonBaloot(teams[1].Projects))

	switch {
	case okA && !okB:
		scoredA = nonBaloot(teams[0].Projects)
	case okB && !okA:
		scoredB = nonBaloot(teams[1].Projects)
	case okA && okB:
		switch {
		case bestA.Value > bestB.Value:
			scoredA = nonBaloot(teams[0].Projects)
		case bestB.Value > bestA.Value:
			scoredB = nonBaloot(teams[1].Projects)
		default:
			// equal highest values: both sides' non-Baloot projects cancel
		}
	}

	scoredA = append(scoredA, onlyBaloot(teams[0].Projects)...)
	scoredB = append(scoredB, onlyBaloot(teams[1].Projects)...)
	return scoredA, scoredB
}

func nonBaloot(ps []Project) []Project {
	out := make([]Project, 0, len(ps))
	for _, p := range ps {
		if p.Type != ProjectBaloot {
			out = append(out, p)
		}
	}
	return out
}

func onlyBaloot(ps []Project) []Project {
	var out []Project
	for _, p := range ps {
		if p.Type == ProjectBaloot {
			out = append(out, p)
		}
	}
	return out
}
