// server/auth/auth.go
package auth

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const Issuer = "FantasyRPG"

var walletPattern = regexp.MustCompile(`^[A-Za-z0-9_\-]{3,64}$`)

// Wallet is a registered wallet identity.
type Wallet struct {
	Address        string    `json:"address"`
	PassphraseHash string    `json:"passphrase_hash"`
	CreatedAt      time.Time `json:"created_at"`
}

type walletStore struct {
	mu      sync.RWMutex
	path    string
	wallets map[string]*Wallet
}

func newWalletStore(path string) (*walletStore, error) {
	ws := &walletStore{path: path, wallets: map[string]*Wallet{}}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if b, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(b, &ws.wallets); err != nil {
			log.Printf("[auth] ignoring unreadable %s: %v", path, err)
		}
	}
	return ws, nil
}

// save writes the map to disk. Callers hold s.mu.
func (s *walletStore) save() error {
	b, err := json.MarshalIndent(s.wallets, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *walletStore) get(address string) (*Wallet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[address]
	return w, ok
}

// add fails when the address is already registered. A wallet that could
// not be persisted is not kept.
func (s *walletStore) add(w *Wallet) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[w.Address]; ok {
		return false, nil
	}
	s.wallets[w.Address] = w
	if err := s.save(); err != nil {
		delete(s.wallets, w.Address)
		return false, err
	}
	return true, nil
}

type Auth struct {
	wallets  *walletStore
	jwtKey   []byte
	issuer   string
	tokenTTL time.Duration
}

func NewAuth(dataDir string, tokenTTL time.Duration) (*Auth, error) {
	wallets, err := newWalletStore(filepath.Join(dataDir, "wallets.json"))
	if err != nil {
		return nil, err
	}
	keyPath := filepath.Join(dataDir, "jwt.key")
	key, err := os.ReadFile(keyPath)
	if err != nil || len(key) < 32 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, err
		}
		if err := os.WriteFile(keyPath, key, 0o600); err != nil {
			return nil, err
		}
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Auth{wallets: wallets, jwtKey: key, issuer: Issuer, tokenTTL: tokenTTL}, nil
}

type RegisterReq struct {
	Wallet            string `json:"wallet"`
	Passphrase        string `json:"passphrase"`
	PassphraseConfirm string `json:"passphrase_confirm"`
}
type RegisterResp struct {
	OK bool `json:"ok"`
}

func (a *Auth) HandleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req RegisterReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	req.Wallet = strings.TrimSpace(req.Wallet)
	if !walletPattern.MatchString(req.Wallet) || len(req.Passphrase) < 6 || req.Passphrase != req.PassphraseConfirm {
		http.Error(w, "invalid wallet or passphrase mismatch / too short", http.StatusBadRequest)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Passphrase), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, "hash failed", http.StatusInternalServerError)
		return
	}
	added, err := a.wallets.add(&Wallet{Address: req.Wallet, PassphraseHash: string(hash), CreatedAt: time.Now()})
	if err != nil {
		log.Printf("[auth] save wallets: %v", err)
		http.Error(w, "save failed", http.StatusInternalServerError)
		return
	}
	if !added {
		http.Error(w, "wallet already registered", http.StatusConflict)
		return
	}
	log.Printf("[auth] registered %s", req.Wallet)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(RegisterResp{OK: true})
}

type LoginReq struct {
	Wallet     string `json:"wallet"`
	Passphrase string `json:"passphrase"`
}
type LoginResp struct {
	Token  string `json:"token"`
	Wallet string `json:"wallet"`
}

func (a *Auth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req LoginReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	wl, ok := a.wallets.get(strings.TrimSpace(req.Wallet))
	if !ok || bcrypt.CompareHashAndPassword([]byte(wl.PassphraseHash), []byte(req.Passphrase)) != nil {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}
	signed, err := a.IssueToken(wl.Address)
	if err != nil {
		http.Error(w, "sign failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(LoginResp{Token: signed, Wallet: wl.Address})
}

// IssueToken signs a token whose subject is the wallet address.
func (a *Auth) IssueToken(wallet string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   wallet,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.jwtKey)
}

// ParseToken returns the wallet address the token was issued for.
func (a *Auth) ParseToken(tok string) (string, error) {
	if tok == "" {
		return "", errors.New("missing token")
	}
	var claims jwt.RegisteredClaims
	t, err := jwt.ParseWithClaims(tok, &claims, func(t *jwt.Token) (any, error) {
		return a.jwtKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(a.issuer))
	if err != nil || !t.Valid {
		return "", errors.New("invalid token")
	}
	if claims.Subject == "" {
		return "", errors.New("bad claims")
	}
	return claims.Subject, nil
}

type ctxKey struct{}

// WalletFrom returns the wallet RequireAuth stored on the request context.
func WalletFrom(ctx context.Context) (string, bool) {
	w, ok := ctx.Value(ctxKey{}).(string)
	return w, ok && w != ""
}

// TokenFrom reads a bearer token, falling back to the token query param.
func TokenFrom(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wallet, err := a.ParseToken(TokenFrom(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, wallet)))
	})
}
