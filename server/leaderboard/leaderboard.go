// Package leaderboard ranks every character in the collection.
package leaderboard

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"fantasyrpg/server/apperr"
	"fantasyrpg/server/asset"
	"fantasyrpg/server/cache"
	"fantasyrpg/server/progression"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

type Ordering string

const (
	// ByKillsThenExp sorts by kills desc, ties broken by exp desc.
	ByKillsThenExp Ordering = "kills_exp"
	// ByKills sorts by kills desc and keeps collection order for ties.
	ByKills Ordering = "kills"
)

// ParseOrdering maps "" to ByKillsThenExp.
func ParseOrdering(s string) (Ordering, error) {
	switch Ordering(strings.ToLower(strings.TrimSpace(s))) {
	case "", ByKillsThenExp:
		return ByKillsThenExp, nil
	case ByKills:
		return ByKills, nil
	}
	return "", apperr.New(apperr.CodeInvalidOperation, fmt.Sprintf("unknown leaderboard order %q", s))
}

// Rank returns a sorted copy of players.
func Rank(players []types.PlayerData, order Ordering) []types.PlayerData {
	out := make([]types.PlayerData, len(players))
	copy(out, players)
	switch order {
	case ByKills:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Killed > out[j].Killed })
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].Killed != out[j].Killed {
				return out[i].Killed > out[j].Killed
			}
			return out[i].Exp > out[j].Exp
		})
	}
	return out
}

// Entries ranks players and resolves their levels against table.
func Entries(players []types.PlayerData, order Ordering, table progression.ExperienceTable) []protocol.LeaderboardEntry {
	ranked := Rank(players, order)
	items := make([]protocol.LeaderboardEntry, 0, len(ranked))
	for i, p := range ranked {
		items = append(items, protocol.LeaderboardEntry{
			Rank:   i + 1,
			Owner:  p.Owner,
			Mint:   p.Mint,
			Class:  string(p.Class),
			Killed: p.Killed,
			Exp:    p.Exp,
			Gold:   p.Gold,
			Level:  progression.LevelFromExp(p.Exp, table),
		})
	}
	return items
}

func cacheKey(order Ordering) string { return "leaderboard:" + string(order) }

// Service serves cached leaderboards. Concurrent misses for the same
// ordering share one store listing.
type Service struct {
	store asset.Store
	cache cache.Cache
	ttl   time.Duration
	table progression.Source
	order Ordering
	group singleflight.Group
}

// NewService builds a service. c and table may be nil.
func NewService(store asset.Store, c cache.Cache, ttl time.Duration, table progression.Source, def Ordering) *Service {
	if def == "" {
		def = ByKillsThenExp
	}
	return &Service{store: store, cache: c, ttl: ttl, table: table, order: def}
}

func (s *Service) DefaultOrdering() Ordering { return s.order }

// Top returns the leaderboard for order; "" uses the service default.
func (s *Service) Top(ctx context.Context, order Ordering) (protocol.Leaderboard, error) {
	if order == "" {
		order = s.order
	}
	key := cacheKey(order)
	if s.cache != nil {
		var lb protocol.Leaderboard
		ok, err := s.cache.Get(key, &lb)
		if err != nil {
			log.Printf("[leaderboard] cache read: %v", err)
		} else if ok {
			return lb, nil
		}
	}

	v, err, _ := s.group.Do(key, func() (any, error) {
		return s.build(ctx, order)
	})
	if err != nil {
		return protocol.Leaderboard{}, err
	}
	return v.(protocol.Leaderboard), nil
}

func (s *Service) build(ctx context.Context, order Ordering) (protocol.Leaderboard, error) {
	players, err := s.store.ListCharacters(ctx)
	if err != nil {
		return protocol.Leaderboard{}, apperr.Wrap(apperr.CodeLoadError, "Failed to load leaderboard", err)
	}
	table := progression.ExperienceTable{}
	if s.table != nil {
		if t, err := s.table.Load(); err != nil {
			log.Printf("[leaderboard] experience table: %v", err)
		} else {
			table = t
		}
	}
	lb := protocol.Leaderboard{
		Order:       string(order),
		Items:       Entries(players, order, table),
		GeneratedAt: time.Now().UnixMilli(),
	}
	if s.cache != nil {
		if err := s.cache.Put(cacheKey(order), lb, s.ttl); err != nil {
			log.Printf("[leaderboard] cache write: %v", err)
		}
	}
	return lb, nil
}
