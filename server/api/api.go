// Package api serves the read-only HTTP endpoints.
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"

	"fantasyrpg/server/apperr"
	"fantasyrpg/server/asset"
	"fantasyrpg/server/auth"
	"fantasyrpg/server/leaderboard"
	"fantasyrpg/server/progression"
	"fantasyrpg/shared/game/types"
)

type ExperienceLevel struct {
	Level int `json:"level"`
	Exp   int `json:"exp"`
}

type ExperienceResponse struct {
	Levels   []ExperienceLevel `json:"levels"`
	MaxLevel int               `json:"maxLevel"`
}

type ClassView struct {
	ID    string               `json:"id"`
	Base  types.CharacterStats `json:"base"`
	Image string               `json:"image"`
}

type CharacterResponse struct {
	AssetID string               `json:"assetId"`
	Player  types.PlayerData     `json:"player"`
	Level   int                  `json:"level"`
	Stats   types.CharacterStats `json:"stats"`
}

type Handlers struct {
	Board *leaderboard.Service
	Table progression.Source
	Store asset.Store
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[api] encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(apperr.CodeOf(err)),
		"message": apperr.Message(err),
	})
}

func statusOf(err error) int {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidOperation:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeWalletNotConnected:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// HandleLeaderboard handles GET /api/leaderboard?order=kills_exp|kills
func (h *Handlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var order leaderboard.Ordering
	if q := r.URL.Query().Get("order"); q != "" {
		o, err := leaderboard.ParseOrdering(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		order = o
	}
	lb, err := h.Board.Top(r.Context(), order)
	if err != nil {
		log.Printf("[api] leaderboard: %v", err)
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, lb)
}

// HandleExperience handles GET /api/experience
func (h *Handlers) HandleExperience(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	table, err := h.Table.Load()
	if err != nil {
		log.Printf("[api] experience table: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	resp := ExperienceResponse{Levels: []ExperienceLevel{}, MaxLevel: table.MaxLevel()}
	for _, lvl := range table.Levels() {
		resp.Levels = append(resp.Levels, ExperienceLevel{Level: lvl, Exp: table[lvl]})
	}
	writeJSON(w, resp)
}

// HandleClasses handles GET /api/classes
func (h *Handlers) HandleClasses(w http.ResponseWriter, r *http.Request) {
	classes := types.ListClasses()
	out := make([]ClassView, 0, len(classes))
	for _, c := range classes {
		out = append(out, ClassView{ID: string(c.ID), Base: c.Base, Image: c.Image})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, out)
}

// HandleCharacter handles GET /api/character for the authenticated wallet.
func (h *Handlers) HandleCharacter(w http.ResponseWriter, r *http.Request) {
	wallet, ok := auth.WalletFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, apperr.ErrWalletNotConnected)
		return
	}
	id, found, err := h.Store.FindCharacter(r.Context(), wallet)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, apperr.New(apperr.CodeNotFound, "No character for this wallet"))
		return
	}
	p, err := h.Store.LoadCharacter(r.Context(), id)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	table, err := h.Table.Load()
	if err != nil {
		table = progression.ExperienceTable{}
	}
	level := progression.LevelFromExp(p.Exp, table)
	stats, err := progression.ComputeStats(p.Class, level)
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, CharacterResponse{AssetID: id, Player: p, Level: level, Stats: stats})
}

// Register mounts the handlers. requireAuth guards per-wallet routes.
func (h *Handlers) Register(mux *http.ServeMux, requireAuth func(http.Handler) http.Handler) {
	mux.HandleFunc("/api/leaderboard", h.HandleLeaderboard)
	mux.HandleFunc("/api/experience", h.HandleExperience)
	mux.HandleFunc("/api/classes", h.HandleClasses)
	mux.Handle("/api/character", requireAuth(http.HandlerFunc(h.HandleCharacter)))
}
