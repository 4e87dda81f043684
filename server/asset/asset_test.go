package asset

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/game/types"
)

func TestMetadataRoundTrip(t *testing.T) {
	p := types.PlayerData{Class: types.ClassArcher, Killed: 12, Gold: 34, HP: types.IntPtr(56), Exp: 7}
	uri, err := EncodeURI(p)
	if err != nil {
		t.Fatalf("EncodeURI: %v", err)
	}
	if !strings.HasPrefix(uri, "data:application/json;base64,") {
		t.Fatalf("unexpected uri prefix: %s", uri[:30])
	}
	md, err := DecodeURI(uri)
	if err != nil {
		t.Fatalf("DecodeURI: %v", err)
	}
	if md.Name != "Fantasy RPG Character - Archer" {
		t.Fatalf("name = %q", md.Name)
	}
	if md.Image != "https://solana-fantasy-rpg.vercel.app/class/class-archer.png" {
		t.Fatalf("image = %q", md.Image)
	}
	got := md.Player()
	if got.Class != p.Class || got.Killed != 12 || got.Gold != 34 || *got.HP != 56 || got.Exp != 7 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMetadataDefaultsAndStringValues(t *testing.T) {
	raw := `{"name":"x","attributes":[{"trait_type":"Monsters Killed","value":"9"},{"trait_type":"Gold","value":3}]}`
	uri := "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(raw))
	md, err := DecodeURI(uri)
	if err != nil {
		t.Fatalf("DecodeURI: %v", err)
	}
	p := md.Player()
	if p.Class != types.ClassWarrior || p.Killed != 9 || p.Gold != 3 || *p.HP != 100 || p.Exp != 0 {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestDecodeURIRejectsOtherSchemes(t *testing.T) {
	if _, err := DecodeURI("https://example.com/meta.json"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestFileStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, found, err := s.FindCharacter(ctx, "wallet-1"); err != nil || found {
		t.Fatalf("find before create: found=%v err=%v", found, err)
	}

	id, err := s.CreateCharacter(ctx, types.NewPlayer(types.ClassMage, "wallet-1"))
	if err != nil {
		t.Fatalf("CreateCharacter: %v", err)
	}

	got, found, err := s.FindCharacter(ctx, "wallet-1")
	if err != nil || !found || got != id {
		t.Fatalf("find after create: id=%q found=%v err=%v", got, found, err)
	}

	p, err := s.LoadCharacter(ctx, id)
	if err != nil {
		t.Fatalf("LoadCharacter: %v", err)
	}
	if p.Class != types.ClassMage || p.Owner != "wallet-1" || p.Mint != id || *p.HP != 100 {
		t.Fatalf("loaded %+v", p)
	}

	p.Killed, p.Gold = 3, 21
	tx, err := s.SaveCharacter(ctx, id, p)
	if err != nil || tx == "" {
		t.Fatalf("SaveCharacter: tx=%q err=%v", tx, err)
	}
	again, _ := s.LoadCharacter(ctx, id)
	if again.Killed != 3 || again.Gold != 21 {
		t.Fatalf("save not persisted: %+v", again)
	}

	all, err := s.ListCharacters(ctx)
	if err != nil || len(all) != 1 || all[0].Mint != id {
		t.Fatalf("ListCharacters: %+v %v", all, err)
	}
}

func TestFileStoreErrors(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStore(t.TempDir(), "")

	if _, err := s.LoadCharacter(ctx, "missing"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.SaveCharacter(ctx, "missing", types.PlayerData{}); !errors.Is(err, apperr.ErrWriteError) {
		t.Fatalf("expected write error, got %v", err)
	}
	if _, err := s.CreateCharacter(ctx, types.NewPlayer("Bard", "w")); !errors.Is(err, apperr.ErrInvalidOperation) {
		t.Fatalf("expected invalid class, got %v", err)
	}
	if _, err := s.CreateCharacter(ctx, types.NewPlayer(types.ClassRogue, "")); !errors.Is(err, apperr.ErrWalletNotConnected) {
		t.Fatalf("expected wallet error, got %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, _, err := s.FindCharacter(cancelled, "w"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestFileStoreCollectionsAreSeparate(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	a, _ := NewFileStore(dir, "A")
	b, _ := NewFileStore(dir, "B")
	if _, err := a.CreateCharacter(ctx, types.NewPlayer(types.ClassRogue, "w")); err != nil {
		t.Fatal(err)
	}
	if list, _ := b.ListCharacters(ctx); len(list) != 0 {
		t.Fatalf("collection B sees %d characters", len(list))
	}
}
