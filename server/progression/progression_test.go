package progression

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/game/types"
)

func scenarioTable() ExperienceTable {
	return ExperienceTable{1: 0, 2: 100, 3: 300}
}

func TestLevelFromExpScenarios(t *testing.T) {
	tbl := scenarioTable()
	cases := []struct {
		exp  int
		want int
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{150, 2},
		{300, 3},
		{1000, 3},
	}
	for _, c := range cases {
		if got := LevelFromExp(c.exp, tbl); got != c.want {
			t.Errorf("LevelFromExp(%d) = %d, want %d", c.exp, got, c.want)
		}
	}
}

func TestLevelFromExpEmptyTable(t *testing.T) {
	if got := LevelFromExp(500, ExperienceTable{}); got != 1 {
		t.Fatalf("empty table: got %d, want 1", got)
	}
	if got := LevelFromExp(500, nil); got != 1 {
		t.Fatalf("nil table: got %d, want 1", got)
	}
}

func TestLevelFromExpMonotonic(t *testing.T) {
	tables := []ExperienceTable{
		scenarioTable(),
		DefaultTable(),
		{1: 5, 4: 20, 9: 21},
	}
	for _, tbl := range tables {
		prev := LevelFromExp(0, tbl)
		for exp := 1; exp < 3000; exp++ {
			lvl := LevelFromExp(exp, tbl)
			if lvl < prev {
				t.Fatalf("level dropped from %d to %d at exp %d", prev, lvl, exp)
			}
			prev = lvl
		}
	}
}

func TestLevelFromExpIdempotent(t *testing.T) {
	tbl := DefaultTable()
	for _, exp := range []int{0, 7, 99, 2200, 99999} {
		if a, b := LevelFromExp(exp, tbl), LevelFromExp(exp, tbl); a != b {
			t.Fatalf("exp %d: %d != %d", exp, a, b)
		}
	}
}

func TestProgress(t *testing.T) {
	tbl := scenarioTable()

	p := Progress(150, tbl)
	if p.Level != 2 || p.Current != 100 || p.Next != 300 || p.Percent != 25 {
		t.Fatalf("unexpected progress %+v", p)
	}

	p = Progress(5000, tbl)
	if !p.MaxLevel || p.Percent != 100 || p.Level != 3 {
		t.Fatalf("expected max level progress, got %+v", p)
	}

	p = Progress(40, ExperienceTable{})
	if p.Level != 1 || p.Next != 100 || p.Percent != 40 {
		t.Fatalf("empty table progress %+v", p)
	}
}

func TestComputeStats(t *testing.T) {
	s, err := ComputeStats(types.ClassMage, 1)
	if err != nil {
		t.Fatalf("ComputeStats: %v", err)
	}
	if s != (types.CharacterStats{Atk: 1, Agi: 3, Vit: 4, Int: 7}) {
		t.Fatalf("mage level 1 stats %+v", s)
	}

	for _, c := range types.ListClasses() {
		for lvl := 1; lvl < 30; lvl++ {
			a, _ := ComputeStats(c.ID, lvl)
			b, _ := ComputeStats(c.ID, lvl+1)
			if b.Atk-a.Atk != 1 || b.Agi-a.Agi != 1 || b.Vit-a.Vit != 1 || b.Int-a.Int != 1 {
				t.Fatalf("%s level %d->%d: %+v -> %+v", c.ID, lvl, lvl+1, a, b)
			}
			again, _ := ComputeStats(c.ID, lvl)
			if again != a {
				t.Fatalf("%s level %d not deterministic", c.ID, lvl)
			}
		}
	}
}

func TestComputeStatsUnknownClass(t *testing.T) {
	_, err := ComputeStats("Bard", 3)
	if !errors.Is(err, apperr.ErrInvalidOperation) {
		t.Fatalf("expected invalid operation, got %v", err)
	}
}

func TestLoadExperienceTable(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "exp.json")
	if err := os.WriteFile(jsonPath, []byte(`{"1":0,"2":100,"3":300}`), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadExperienceTable(jsonPath)
	if err != nil {
		t.Fatalf("load json: %v", err)
	}
	if len(tbl) != 3 || tbl[3] != 300 {
		t.Fatalf("json table %v", tbl)
	}

	yamlPath := filepath.Join(dir, "exp.yaml")
	if err := os.WriteFile(yamlPath, []byte("\"1\": 0\n\"2\": 50\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tbl, err = LoadExperienceTable(yamlPath)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if tbl[2] != 50 {
		t.Fatalf("yaml table %v", tbl)
	}

	if _, err := LoadExperienceTable(filepath.Join(dir, "missing.json")); !errors.Is(err, apperr.ErrLoadError) {
		t.Fatalf("expected load error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`{"x":1}`), 0o644)
	if _, err := LoadExperienceTable(bad); !errors.Is(err, apperr.ErrLoadError) {
		t.Fatalf("expected load error for bad level key, got %v", err)
	}

	def, err := LoadExperienceTable("")
	if err != nil || def.MaxLevel() != 20 {
		t.Fatalf("default table max=%d err=%v", def.MaxLevel(), err)
	}
}

func TestFileSourceCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exp.json")
	_ = os.WriteFile(path, []byte(`{"1":0,"2":10}`), 0o644)

	src := &FileSource{Path: path}
	first, err := src.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_ = os.Remove(path)
	second, err := src.Load()
	if err != nil {
		t.Fatalf("cached load: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("cached table differs")
	}
}
