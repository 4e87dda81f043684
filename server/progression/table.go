package progression

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/protocol"
)

//go:embed data/exp_levels.json
var defaultTableJSON []byte

// ExperienceTable maps a level to the minimum cumulative experience needed to
// reach it. It is read-only once loaded.
type ExperienceTable map[int]int

type entry struct {
	level     int
	threshold int
}

func (t ExperienceTable) sorted() []entry {
	out := make([]entry, 0, len(t))
	for lvl, th := range t {
		out = append(out, entry{level: lvl, threshold: th})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].level < out[j].level })
	return out
}

// Levels returns the known levels in ascending order.
func (t ExperienceTable) Levels() []int {
	es := t.sorted()
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = e.level
	}
	return out
}

// MaxLevel returns the highest known level, or 1 for an empty table.
func (t ExperienceTable) MaxLevel() int {
	max := 0
	for lvl := range t {
		if lvl > max {
			max = lvl
		}
	}
	if max < 1 {
		return 1
	}
	return max
}

// LevelFromExp returns the highest level whose threshold does not exceed exp.
// The scan stops at the first threshold above exp, so an exp at or past every
// threshold resolves to the maximum known level. Empty tables resolve to 1.
func LevelFromExp(exp int, table ExperienceTable) int {
	lvl := 1
	for _, e := range table.sorted() {
		if e.threshold > exp {
			break
		}
		lvl = e.level
	}
	return lvl
}

// Progress reports how far exp is into its level. Missing thresholds fall
// back to 0 for the current level and 100 for the next one.
func Progress(exp int, table ExperienceTable) protocol.LevelProgress {
	lvl := LevelFromExp(exp, table)
	cur, ok := table[lvl]
	if !ok {
		cur = 0
	}
	next, hasNext := table[lvl+1]
	p := protocol.LevelProgress{Level: lvl, Current: cur, Next: next}
	if !hasNext {
		if len(table) > 0 && lvl >= table.MaxLevel() {
			p.MaxLevel = true
			p.Next = cur
			p.Percent = 100
			return p
		}
		p.Next = 100
	}
	span := p.Next - cur
	if span <= 0 {
		return p
	}
	pct := (exp - cur) * 100 / span
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	p.Percent = pct
	return p
}

// DefaultTable returns the embedded experience table.
func DefaultTable() ExperienceTable {
	t, err := parseJSON(defaultTableJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded exp table: %v", err))
	}
	return t
}

// LoadExperienceTable reads a JSON or YAML level table. An empty path returns
// the embedded default.
func LoadExperienceTable(path string) (ExperienceTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLoadError, "Failed to load exp table", err)
	}
	var t ExperienceTable
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		t, err = parseYAML(b)
	default:
		t, err = parseJSON(b)
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLoadError, "Failed to load exp table", err)
	}
	return t, nil
}

func parseJSON(b []byte) (ExperienceTable, error) {
	var raw map[string]int
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	return fromStringKeys(raw)
}

func parseYAML(b []byte) (ExperienceTable, error) {
	var raw map[string]int
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return fromStringKeys(raw)
}

func fromStringKeys(raw map[string]int) (ExperienceTable, error) {
	t := make(ExperienceTable, len(raw))
	for k, v := range raw {
		lvl, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			return nil, fmt.Errorf("level %q: %w", k, err)
		}
		if lvl < 1 {
			return nil, fmt.Errorf("level %d must be >= 1", lvl)
		}
		if v < 0 {
			return nil, fmt.Errorf("level %d threshold %d is negative", lvl, v)
		}
		t[lvl] = v
	}
	return t, nil
}

// Source supplies the experience table to sessions.
type Source interface {
	Load() (ExperienceTable, error)
}

// FileSource loads Path once and serves the cached table afterwards. Failed
// loads are not cached so a later session can retry.
type FileSource struct {
	Path string

	mu    sync.Mutex
	table ExperienceTable
}

func (s *FileSource) Load() (ExperienceTable, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.table != nil {
		return s.table, nil
	}
	t, err := LoadExperienceTable(s.Path)
	if err != nil {
		return nil, err
	}
	s.table = t
	return t, nil
}

// StaticSource serves a fixed table.
type StaticSource ExperienceTable

func (s StaticSource) Load() (ExperienceTable, error) { return ExperienceTable(s), nil }
