package protocol

import (
	"encoding/json"

	"fantasyrpg/shared/game/types"
)

// Envelope
type MsgEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// ================= C -> S =================

type GetState struct{}

type CreateCharacter struct {
	Class string `json:"class"`
}

type Attack struct{}

type BuyPotion struct{}

type GetLeaderboard struct {
	Order string `json:"order,omitempty"` // "kills_exp" (default) or "kills"
}

type Logout struct{}

// ================= S -> C =================

// AttackProgress drives the attack progress bar while the pacing timer runs.
type AttackProgress struct {
	Percent int `json:"percent"`
}

type BattleResult struct {
	Log    types.BattleLog  `json:"log"`
	Player types.PlayerData `json:"player"`
}

// Notice is a human readable toast.
type Notice struct {
	Message string `json:"message"`
}

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}
