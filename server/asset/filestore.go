package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"fantasyrpg/server/apperr"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

// FileStore keeps one JSON record per asset under dir.
type FileStore struct {
	dir        string
	collection string

	mu    sync.Mutex // guards locks
	locks map[string]*sync.Mutex
}

// NewFileStore creates dir if needed.
func NewFileStore(dir, collection string) (*FileStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("asset dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset directory: %w", err)
	}
	if collection == "" {
		collection = DefaultCollection
	}
	return &FileStore{dir: dir, collection: collection, locks: map[string]*sync.Mutex{}}, nil
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\-]+`)

// safeFileName creates a safe filename from potentially unsafe characters
func safeFileName(name string) string {
	s := unsafeNameChars.ReplaceAllString(name, "_")
	if s == "" {
		s = "asset"
	}
	return s
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, safeFileName(id)+".json")
}

// assetLock returns the mutex serialising writes to one asset.
func (s *FileStore) assetLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *FileStore) readRecord(id string) (Record, error) {
	b, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return Record{}, apperr.New(apperr.CodeNotFound, "Character not found")
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to read asset file: %w", err)
	}
	var r Record
	if err := json.Unmarshal(b, &r); err != nil {
		return Record{}, fmt.Errorf("failed to unmarshal asset file: %w", err)
	}
	return r, nil
}

func (s *FileStore) writeRecord(r Record) error {
	path := s.path(r.ID)
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal asset: %w", err)
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp asset file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename asset file: %w", err)
	}
	return nil
}

// records walks the directory and returns every readable record of the
// collection, oldest first.
func (s *FileStore) records() ([]Record, error) {
	var out []Record
	err := fs.WalkDir(os.DirFS(s.dir), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(p), ".json") {
			return nil
		}
		b, err := os.ReadFile(filepath.Join(s.dir, p))
		if err != nil {
			return nil
		}
		var r Record
		if json.Unmarshal(b, &r) != nil {
			log.Printf("[asset] skipping unreadable record %s", p)
			return nil
		}
		if r.Collection == s.collection {
			out = append(out, r)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk asset directory: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *FileStore) FindCharacter(ctx context.Context, owner string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if owner == "" {
		return "", false, apperr.ErrWalletNotConnected
	}
	recs, err := s.records()
	if err != nil {
		return "", false, apperr.Wrap(apperr.CodeLoadError, "Failed to look up character", err)
	}
	for _, r := range recs {
		if r.Owner == owner && strings.HasPrefix(r.Name, NamePrefix) {
			return r.ID, true, nil
		}
	}
	return "", false, nil
}

func (s *FileStore) LoadCharacter(ctx context.Context, assetID string) (types.PlayerData, error) {
	if err := ctx.Err(); err != nil {
		return types.PlayerData{}, err
	}
	r, err := s.readRecord(assetID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return types.PlayerData{}, err
		}
		return types.PlayerData{}, apperr.Wrap(apperr.CodeLoadError, "Failed to load character", err)
	}
	p, err := r.Player()
	if err != nil {
		return types.PlayerData{}, apperr.Wrap(apperr.CodeLoadError, "Failed to load character", err)
	}
	return p, nil
}

func (s *FileStore) CreateCharacter(ctx context.Context, initial types.PlayerData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := ValidateNew(initial); err != nil {
		return "", err
	}
	uri, err := EncodeURI(initial)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to create character", err)
	}
	now := time.Now().UnixMilli()
	r := Record{
		ID:         protocol.NewID(),
		Owner:      initial.Owner,
		Name:       Name(initial.Class),
		URI:        uri,
		Collection: s.collection,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	lock := s.assetLock(r.ID)
	lock.Lock()
	defer lock.Unlock()
	if err := s.writeRecord(r); err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to create character", err)
	}
	log.Printf("[asset] created %s for %s (%s)", r.ID, r.Owner, initial.Class)
	return r.ID, nil
}

func (s *FileStore) SaveCharacter(ctx context.Context, assetID string, p types.PlayerData) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	lock := s.assetLock(assetID)
	lock.Lock()
	defer lock.Unlock()

	r, err := s.readRecord(assetID)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	uri, err := EncodeURI(p)
	if err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	r.URI = uri
	r.UpdatedAt = time.Now().UnixMilli()
	r.LastTx = protocol.NewID()
	if err := s.writeRecord(r); err != nil {
		return "", apperr.Wrap(apperr.CodeWriteError, "Failed to save character", err)
	}
	return r.LastTx, nil
}

func (s *FileStore) ListCharacters(ctx context.Context) ([]types.PlayerData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recs, err := s.records()
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeLoadError, "Failed to list characters", err)
	}
	out := make([]types.PlayerData, 0, len(recs))
	for _, r := range recs {
		p, err := r.Player()
		if err != nil {
			log.Printf("[asset] skipping %s: %v", r.ID, err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}
