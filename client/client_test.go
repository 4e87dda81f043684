package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"fantasyrpg/server/auth"
	"fantasyrpg/shared/protocol"
)

func TestTokenRoundTrip(t *testing.T) {
	cfg := Config{Dir: t.TempDir()}
	if got := cfg.LoadToken(); got != "" {
		t.Fatalf("token before save = %q", got)
	}
	if err := cfg.SaveToken(" abc \n"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	if got := cfg.LoadToken(); got != "abc" {
		t.Fatalf("LoadToken = %q", got)
	}
	if err := cfg.ClearToken(); err != nil {
		t.Fatalf("ClearToken: %v", err)
	}
	if err := cfg.ClearToken(); err != nil {
		t.Fatalf("second ClearToken: %v", err)
	}
}

func TestSanitizeProfile(t *testing.T) {
	if got := sanitize(" My Profile/1 "); got != "my_profile1" {
		t.Fatalf("sanitize = %q", got)
	}
	if got := sanitize("***"); got != "default" {
		t.Fatalf("sanitize = %q", got)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	a, err := auth.NewAuth(t.TempDir(), time.Hour)
	if err != nil {
		t.Fatalf("NewAuth: %v", err)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/register", a.HandleRegister)
	mux.HandleFunc("/api/login", a.HandleLogin)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	ctx := context.Background()
	h := NewHTTP(ts.URL+"/", "")
	if err := h.Register(ctx, "wallet-1", "secret1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := h.Login(ctx, "wallet-1", "nope"); err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected 401, got %v", err)
	}
	tok, err := h.Login(ctx, "wallet-1", "secret1")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if w, err := a.ParseToken(tok); err != nil || w != "wallet-1" || h.Token != tok {
		t.Fatalf("token wallet %q err %v", w, err)
	}
}

func TestNetAwait(t *testing.T) {
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		push := func(typ string, v any) {
			b, _ := json.Marshal(v)
			_ = conn.WriteJSON(protocol.MsgEnvelope{Type: typ, Data: b})
		}
		push("Notice", protocol.Notice{Message: "hi"})
		push("State", protocol.State{State: "Loaded"})
		var env protocol.MsgEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		push("Error", protocol.Error{Code: "BUSY", Message: "later"})
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if _, err := Dial(ctx, wsURL, "bad"); err == nil {
		t.Fatal("expected dial failure")
	}

	n, err := Dial(ctx, wsURL, "tok")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer n.Close()
	var seen []string
	n.Observe = func(m protocol.MsgEnvelope) { seen = append(seen, m.Type) }

	m, err := n.Await(ctx, "State")
	if err != nil || m.Type != "State" {
		t.Fatalf("Await = %+v, %v", m, err)
	}
	if len(seen) != 1 || seen[0] != "Notice" {
		t.Fatalf("observed %v", seen)
	}

	if err := n.Send("Attack", protocol.Attack{}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, err = n.Await(ctx, "BattleResult")
	var se *ServerError
	if !errors.As(err, &se) || se.Code != "BUSY" {
		t.Fatalf("expected server error, got %v", err)
	}

	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := n.Send("Attack", protocol.Attack{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("send after close: %v", err)
	}
}

func TestNetCloseWithFullInbox(t *testing.T) {
	up := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := json.Marshal(protocol.AttackProgress{Percent: 1})
		for i := 0; i < 300; i++ {
			if err := conn.WriteJSON(protocol.MsgEnvelope{Type: "AttackProgress", Data: b}); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	n, err := Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), "tok")
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(n.Inbox()) < cap(n.Inbox()) {
		if time.Now().After(deadline) {
			t.Fatalf("inbox holds %d messages", len(n.Inbox()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// the reader gives up on the message it was holding instead of
	// waiting for room in the inbox
	time.Sleep(100 * time.Millisecond)
	got := 0
	for {
		select {
		case _, ok := <-n.Inbox():
			if !ok {
				if got != cap(n.Inbox()) {
					t.Fatalf("received %d messages after Close, want %d", got, cap(n.Inbox()))
				}
				return
			}
			got++
		case <-ctx.Done():
			t.Fatal("inbox not closed after Close")
		}
	}
}
