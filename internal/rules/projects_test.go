package rules

import "testing"

func TestDetectProjectsSira(t *testing.T) {
	t.Parallel()
	hand := []Card{
		{Clubs, Seven}, {Clubs, Eight}, {Clubs, Nine},
		{Hearts, Ace}, {Spades, King},
	}
	projects := DetectProjects(hand, Hearts, Sun)
	if len(projects) != 1 {
		t.Fatalf("expected 1 project, got %d: %+v", len(projects), projects)
	}
	if projects[0].Type != ProjectSira || projects[0].Value != 4 {
		t.Errorf("expected SIRA worth 4, got %+v", projects[0])
	}
}

func TestDetectProjectsFiftyAndHundred(t *testing.T) {
	t.Parallel()
	fifty := []Card{{Diamonds, Seven}, {Diamonds, Eight}, {Diamonds, Nine}, {Diamonds, Ten}}
	projects := DetectProjects(fifty, Clubs, Sun)
	if len(projects) != 1 || projects[0].Type != ProjectFifty {
		t.Fatalf("expected a single FIFTY, got %+v", projects)
	}

	hundred := []Card{
		{Diamonds, Seven}, {Diamonds, Eight}, {Diamonds, Nine},
		{Diamonds, Ten}, {Diamonds, Jack},
	}
	projects = DetectProjects(hundred, Clubs, Sun)
	if len(projects) != 1 || projects[0].Type != ProjectHundred {
		t.Fatalf("expected a single HUNDRED from a 5-run, got %+v", projects)
	}
}

func TestDetectProjectsFourOfAKindHundred(t *testing.T) {
	t.Parallel()
	hand := []Card{
		{Clubs, King}, {Diamonds, King}, {Hearts, King}, {Spades, King},
		{Clubs, Seven},
	}
	projects := DetectProjects(hand, Hearts, Sun)
	if len(projects) != 1 || projects[0].Type != ProjectHundred {
		t.Fatalf("expected HUNDRED from four Kings, got %+v", projects)
	}
}

func TestDetectProjectsFourHundredSunOnly(t *testing.T) {
	t.Parallel()
	aces := []Card{{Clubs, Ace}, {Diamonds, Ace}, {Hearts, Ace}, {Spades, Ace}}

	sunProjects := DetectProjects(aces, Clubs, Sun)
	if len(sunProjects) != 1 || sunProjects[0].Type != ProjectFourHundred {
		t.Fatalf("expected FOUR_HUNDRED in SUN, got %+v", sunProjects)
	}

	hokumProjects := DetectProjects(aces, Clubs, Hokum)
	for _, p := range hokumProjects {
		if p.Type == ProjectFourHundred {
			t.Error("FOUR_HUNDRED must not qualify in HOKUM")
		}
	}
}

func TestDetectProjectsBalootHokumOnly(t *testing.T) {
	t.Parallel()
	hand := []Card{{Spades, King}, {Spades, Queen}, {Clubs, Seven}}

	hokumProjects := DetectProjects(hand, Spades, Hokum)
	found := false
	for _, p := range hokumProjects {
		if p.Type == ProjectBaloot {
			found = true
		}
	}
	if !found {
		t.Error("expected BALOOT with K+Q of trump in HOKUM")
	}

	sunProjects := DetectProjects(hand, Spades, Sun)
	for _, p := range sunProjects {
		if p.Type == ProjectBaloot {
			t.Error("BALOOT must not qualify in SUN")
		}
	}
}

func TestResolveDeclarationConflictsHigherWins(t *testing.T) {
	t.Parallel()
	teams := [2]TeamDeclarations{
		{Team: 0, Projects: []Project{{Type: ProjectFifty, Value: 10}}},
		{Team: 1, Projects: []Project{{Type: ProjectSira, Value: 4}}},
	}

	scoredA, scoredB := ResolveDeclarationConflicts(teams)
	if len(scoredA) != 1 || len(scoredB) != 0 {
		t.Errorf("higher project should win outright, got a=%+v b=%+v", scoredA, scoredB)
	}
}

func TestResolveDeclarationConflictsEqualCancels(t *testing.T) {
	t.Parallel()
	teams := [2]TeamDeclarations{
		{Team: 0, Projects: []Project{{Type: ProjectSira, Value: 4}}},
		{Team: 1, Projects: []Project{{Type: ProjectSira, Value: 4}}},
	}

	scoredA, scoredB := ResolveDeclarationConflicts(teams)
	if len(scoredA) != 0 || len(scoredB) != 0 {
		t.Errorf("equal highest projects should cancel both sides, got a=%+v b=%+v", scoredA, scoredB)
	}
}

func TestResolveDeclarationConflictsBalootAlwaysScores(t *testing.T) {
	t.Parallel()
	teams := [2]TeamDeclarations{
		{Team: 0, Projects: []Project{{Type: ProjectSira, Value: 4}, {Type: ProjectBaloot}}},
		{Team: 1, Projects: []Project{{Type: ProjectHundred, Value: 20}}},
	}

	scoredA, scoredB := ResolveDeclarationConflicts(teams)
	if len(scoredB) != 1 || scoredB[0].Type != ProjectHundred {
		t.Errorf("team 1's HUNDRED should win outright, got %+v", scoredB)
	}
	if len(scoredA) != 1 || scoredA[0].Type != ProjectBaloot {
		t.Errorf("team 0's BALOOT should survive despite losing the comparison, got %+v", scoredA)
	}
}
