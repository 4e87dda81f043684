package srv

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

	"fantasyrpg/server/asset"
	"fantasyrpg/server/cache"
	"fantasyrpg/server/combat"
	"fantasyrpg/server/history"
	"fantasyrpg/server/leaderboard"
	"fantasyrpg/server/progression"
	"fantasyrpg/server/session"
	"fantasyrpg/shared/game/types"
	"fantasyrpg/shared/protocol"
)

func newTestServer(t *testing.T) (*httptest.Server, *Hub, asset.Store) {
	t.Helper()
	store, err := asset.NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	table := progression.StaticSource(progression.DefaultTable())
	hist := history.NewStore(cache.NewMemory(), 0)
	newSession := func() *session.Session {
		return session.New(session.Deps{
			Store:   store,
			History: hist,
			Table:   table,
			Rand:    combat.NewSeededRoller(7),
		})
	}
	board := leaderboard.NewService(store, nil, 0, table, "")
	hub := NewHub(newSession, board)

	parse := func(tok string) (string, error) {
		if tok == "" {
			return "", errors.New("missing token")
		}
		return tok, nil
	}
	ts := httptest.NewServer(hub.Handler(parse))
	t.Cleanup(ts.Close)
	return ts, hub, store
}

func dial(t *testing.T, ts *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ string, v any) {
	t.Helper()
	b, _ := json.Marshal(v)
	if err := conn.WriteJSON(protocol.MsgEnvelope{Type: typ, Data: b}); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

// next reads until a message of type typ arrives.
func next(t *testing.T, conn *websocket.Conn, typ string, dst any) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env protocol.MsgEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", typ, err)
		}
		if env.Type != typ {
			continue
		}
		if dst != nil {
			if err := json.Unmarshal(env.Data, dst); err != nil {
				t.Fatalf("decode %s: %v", typ, err)
			}
		}
		return
	}
}

func TestHandlerRejectsMissingToken(t *testing.T) {
	ts, _, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d", resp.StatusCode)
	}
}

func TestHubCreateAttackPotionFlow(t *testing.T) {
	ts, _, store := newTestServer(t)
	conn := dial(t, ts, "wallet-1")

	var st protocol.State
	next(t, conn, "State", &st)
	if st.State != "NeedsCreation" || st.Owner != "wallet-1" {
		t.Fatalf("initial state = %+v", st)
	}

	send(t, conn, "CreateCharacter", protocol.CreateCharacter{Class: "Archer"})
	next(t, conn, "State", &st)
	if st.State != "Loaded" || st.Player == nil || st.Player.Class != types.ClassArcher {
		t.Fatalf("after create = %+v", st)
	}

	send(t, conn, "BuyPotion", protocol.BuyPotion{})
	var e protocol.Error
	next(t, conn, "Error", &e)
	if e.Code != "INVALID_OPERATION" || e.Message != "You dont need to buy it." {
		t.Fatalf("potion error = %+v", e)
	}

	send(t, conn, "Attack", protocol.Attack{})
	var res protocol.BattleResult
	next(t, conn, "BattleResult", &res)
	if res.Player.Killed != 1 || res.Log.TxSignature == "" {
		t.Fatalf("battle result = %+v", res)
	}
	next(t, conn, "State", &st)
	if len(st.Logs) != 1 {
		t.Fatalf("logs = %+v", st.Logs)
	}

	saved, err := store.LoadCharacter(context.Background(), st.AssetID)
	if err != nil || saved.Killed != 1 {
		t.Fatalf("stored = %+v, %v", saved, err)
	}
}

func TestHubLeaderboardAndUnknown(t *testing.T) {
	ts, _, store := newTestServer(t)
	p := types.NewPlayer(types.ClassMage, "wallet-2")
	if _, err := store.CreateCharacter(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}
	conn := dial(t, ts, "wallet-2")
	next(t, conn, "State", nil)

	send(t, conn, "GetLeaderboard", protocol.GetLeaderboard{Order: "kills"})
	var lb protocol.Leaderboard
	next(t, conn, "Leaderboard", &lb)
	if lb.Order != "kills" || len(lb.Items) != 1 || lb.Items[0].Owner != "wallet-2" {
		t.Fatalf("leaderboard = %+v", lb)
	}

	send(t, conn, "GetLeaderboard", protocol.GetLeaderboard{Order: "gold"})
	var e protocol.Error
	next(t, conn, "Error", &e)
	if e.Code != "INVALID_OPERATION" {
		t.Fatalf("error = %+v", e)
	}

	send(t, conn, "Dance", struct{}{})
	next(t, conn, "Error", &e)
	if !strings.Contains(e.Message, "Dance") {
		t.Fatalf("error = %+v", e)
	}
}

func TestHubLogoutClosesSession(t *testing.T) {
	ts, hub, _ := newTestServer(t)
	conn := dial(t, ts, "wallet-3")
	next(t, conn, "State", nil)

	send(t, conn, "Logout", protocol.Logout{})
	var st protocol.State
	next(t, conn, "State", &st)
	if st.State != "Disconnected" || st.Owner != "" {
		t.Fatalf("state after logout = %+v", st)
	}

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client still registered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendProgressKeepsLatest(t *testing.T) {
	c := newClient(nil, "wallet-1", nil)
	for pct := 2; pct <= 100; pct += 2 {
		sendProgress(c, pct)
	}
	if n := len(c.progress); n != 1 {
		t.Fatalf("queued progress frames = %d, want 1", n)
	}
	var env protocol.MsgEnvelope
	_ = json.Unmarshal(<-c.progress, &env)
	var p protocol.AttackProgress
	_ = json.Unmarshal(env.Data, &p)
	if env.Type != "AttackProgress" || p.Percent != 100 {
		t.Fatalf("progress = %s %+v", env.Type, p)
	}
}

func TestSendJSONWaitsForRoom(t *testing.T) {
	c := newClient(nil, "wallet-1", nil)
	for i := 0; i < cap(c.send); i++ {
		sendJSON(c, "Notice", protocol.Notice{Message: "filler"})
	}

	sent := make(chan struct{})
	go func() {
		sendJSON(c, "BattleResult", protocol.BattleResult{})
		close(sent)
	}()
	select {
	case <-sent:
		t.Fatal("sendJSON returned while the buffer was full")
	case <-time.After(50 * time.Millisecond):
	}

	<-c.send
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("sendJSON still blocked after room was made")
	}
	var last protocol.MsgEnvelope
	for len(c.send) > 0 {
		_ = json.Unmarshal(<-c.send, &last)
	}
	if last.Type != "BattleResult" {
		t.Fatalf("last queued = %q", last.Type)
	}
}

func TestSendJSONGivesUpOnClose(t *testing.T) {
	c := newClient(nil, "wallet-1", nil)
	for i := 0; i < cap(c.send); i++ {
		sendJSON(c, "Notice", protocol.Notice{Message: "filler"})
	}
	close(c.quit)

	sent := make(chan struct{})
	go func() {
		sendJSON(c, "State", protocol.State{})
		close(sent)
	}()
	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("sendJSON blocked after the writer stopped")
	}
}
