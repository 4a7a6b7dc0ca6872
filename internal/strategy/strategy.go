package strategy

import (
	"fmt"

	"github.com/derekprior/leaguesched/internal/domain"
)

// Pairing is a single matchup within a round. Leg is 1 for the first pass of
// a round-robin and 2 for the reversed second pass.
type Pairing struct {
	Round int
	Leg   int
	Home  domain.Team
	Away  domain.Team
}

func (p Pairing) String() string {
	return fmt.Sprintf("round %d: %s vs %s", p.Round, p.Home.ID, p.Away.ID)
}

// Strategy produces the ordered rounds of a season.
type Strategy interface {
	Rounds(teams []domain.Team) ([][]Pairing, error)
}

// Get returns a Strategy by name.
func Get(name string) (Strategy, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobin{}, nil
	case "double_round_robin":
		return &RoundRobin{Double: true}, nil
	default:
		return nil, fmt.Errorf("unknown strategy: %q", name)
	}
}

// RoundRobin pairs every team with every other team once using the circle
// method. With Double set the rounds are repeated with home and away swapped.
type RoundRobin struct {
	Double bool
}

func (s *RoundRobin) Rounds(teams []domain.Team) ([][]Pairing, error) {
	if len(teams) < 2 {
		return nil, domain.Invalid("teams", "at least two teams are required, got %d", len(teams))
	}
	seen := make(map[string]bool, len(teams))
	for _, t := range teams {
		if t.ID == "" {
			return nil, domain.Invalid("teams", "team id is required")
		}
		if seen[t.ID] {
			return nil, domain.Invalid("teams", "duplicate team id %q", t.ID)
		}
		seen[t.ID] = true
	}

	// A nil seat is the bye; pairing against it yields no game.
	working := make([]*domain.Team, 0, len(teams)+1)
	for i := range teams {
		working = append(working, &teams[i])
	}
	if len(working)%2 == 1 {
		working = append(working, nil)
	}

	n := len(working)
	first := make([][]Pairing, 0, n-1)
	for round := 0; round < n-1; round++ {
		pairs := make([]Pairing, 0, n/2)
		for i := 0; i < n/2; i++ {
			left := working[i]
			right := working[n-1-i]
			if left == nil || right == nil {
				continue
			}
			home, away := *left, *right
			// Alternate the fixed seat so it is not always at home.
			if i == 0 && round%2 == 1 {
				home, away = away, home
			}
			pairs = append(pairs, Pairing{Round: round + 1, Leg: 1, Home: home, Away: away})
		}
		first = append(first, pairs)
		rotate(working)
	}

	if !s.Double {
		return first, nil
	}

	rounds := make([][]Pairing, 0, 2*len(first))
	rounds = append(rounds, first...)
	for r, pairs := range first {
		reversed := make([]Pairing, len(pairs))
		for i, p := range pairs {
			reversed[i] = Pairing{Round: len(first) + r + 1, Leg: 2, Home: p.Away, Away: p.Home}
		}
		rounds = append(rounds, reversed)
	}
	return rounds, nil
}

// rotate keeps seat 0 fixed and moves every other seat one place clockwise.
func rotate(seats []*domain.Team) {
	if len(seats) <= 2 {
		return
	}
	last := seats[len(seats)-1]
	copy(seats[2:], seats[1:len(seats)-1])
	seats[1] = last
}
