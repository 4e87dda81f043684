// Package history keeps each character's recent battle logs in the local
// cache. The list is advisory; the asset store stays authoritative.
package history

import (
	"fmt"
	"time"

	"fantasyrpg/server/cache"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

// Key returns the cache key for an asset's battle logs.
func Key(assetID string) string {
	return "battle_logs_" + assetID
}

// Prepend puts log first and trims to the newest MaxBattleLogs entries.
// logs is not modified.
func Prepend(logs []types.BattleLog, log types.BattleLog) []types.BattleLog {
	n := len(logs) + 1
	if n > protocol.MaxBattleLogs {
		n = protocol.MaxBattleLogs
	}
	out := make([]types.BattleLog, 0, n)
	out = append(out, log)
	for _, l := range logs {
		if len(out) == n {
			break
		}
		out = append(out, l)
	}
	return out
}

// Store reads and writes battle logs through a cache.
type Store struct {
	c   cache.Cache
	ttl time.Duration
}

func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{c: c, ttl: ttl}
}

// Load returns the cached logs for assetID, or nil when none are cached.
func (s *Store) Load(assetID string) ([]types.BattleLog, error) {
	if s == nil || s.c == nil || assetID == "" {
		return nil, nil
	}
	var logs []types.BattleLog
	ok, err := s.c.Get(Key(assetID), &logs)
	if err != nil {
		return nil, fmt.Errorf("load battle logs: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if len(logs) > protocol.MaxBattleLogs {
		logs = logs[:protocol.MaxBattleLogs]
	}
	return logs, nil
}

// Save overwrites the cached logs for assetID.
func (s *Store) Save(assetID string, logs []types.BattleLog) error {
	if s == nil || s.c == nil || assetID == "" {
		return nil
	}
	if err := s.c.Put(Key(assetID), logs, s.ttl); err != nil {
		return fmt.Errorf("save battle logs: %w", err)
	}
	return nil
}

// Clear drops the cached logs for assetID.
func (s *Store) Clear(assetID string) error {
	if s == nil || s.c == nil || assetID == "" {
		return nil
	}
	return s.c.Delete(Key(assetID))
}
