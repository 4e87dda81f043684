package combat

import (
	"fmt"
	"strings"

	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

// ExpMode selects how earned experience is applied to the player.
type ExpMode string

const (
	// ExpReplace overwrites exp with the amount earned by the last attack.
	ExpReplace ExpMode = "replace"
	// ExpAccumulate adds the earned amount to the current exp.
	ExpAccumulate ExpMode = "accumulate"
)

func ParseExpMode(s string) (ExpMode, error) {
	switch ExpMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ExpReplace:
		return ExpReplace, nil
	case ExpAccumulate:
		return ExpAccumulate, nil
	default:
		return "", fmt.Errorf("unknown exp mode %q", s)
	}
}

// Roller draws uniform integers in [0,n). *rand.Rand satisfies it.
type Roller interface {
	Intn(n int) int
}

// Outcome is the result of one attack.
type Outcome struct {
	Monster    types.Monster
	GoldEarned int
	ExpEarned  int
	LostHP     int
	Player     types.PlayerData
}

func rollRange(rng Roller, min, max int) int {
	return min + rng.Intn(max-min+1)
}

// Resolve rolls a monster and its rewards and returns the updated player.
// The input is never modified.
func Resolve(p types.PlayerData, rng Roller, mode ExpMode) Outcome {
	monster := types.Monsters[rng.Intn(len(types.Monsters))]
	gold := rollRange(rng, protocol.GoldRollMin, protocol.GoldRollMax)
	lost := rollRange(rng, protocol.LostHPRollMin, protocol.LostHPRollMax)
	exp := rollRange(rng, protocol.ExpRollMin, protocol.ExpRollMax)

	next := p.Clone()
	next.Killed = p.Killed + 1
	next.Gold = p.Gold + gold
	next = next.WithHP(p.HPOrDefault() - lost)
	switch mode {
	case ExpAccumulate:
		next.Exp = p.Exp + exp
	default:
		next.Exp = exp
	}

	return Outcome{
		Monster:    monster,
		GoldEarned: gold,
		ExpEarned:  exp,
		LostHP:     lost,
		Player:     next,
	}
}

// LowHP reports whether the player should be told to drink a potion first.
func LowHP(p types.PlayerData) bool {
	return p.HPOrDefault() < protocol.LowHPWarning
}
