package protocol

import "fantasyrpg/shared/game/types"

// State is the full session view pushed after every transition.
type State struct {
	State    string                `json:"state"` // Disconnected, Resolving, NeedsCreation, Loaded, Pending
	Owner    string                `json:"owner,omitempty"`
	AssetID  string                `json:"assetId,omitempty"`
	Player   *types.PlayerData     `json:"player,omitempty"`
	Level    int                   `json:"level"`
	Progress LevelProgress         `json:"progress"`
	Stats    *types.CharacterStats `json:"stats,omitempty"`
	Logs     []types.BattleLog     `json:"logs"`
	Classes  []string              `json:"classes,omitempty"` // offered while NeedsCreation
	Warning  string                `json:"warning,omitempty"`
}

type LevelProgress struct {
	Level    int  `json:"level"`
	Current  int  `json:"current"` // threshold of the current level
	Next     int  `json:"next"`    // threshold of the next level
	Percent  int  `json:"percent"`
	MaxLevel bool `json:"maxLevel"`
}
