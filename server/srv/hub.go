// server/srv/hub.go
package srv

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fantasyrpg/server/apperr"
	"fantasyrpg/server/auth"
	"fantasyrpg/server/leaderboard"
	"fantasyrpg/server/session"
	"fantasyrpg/shared/protocol"
)

const (
	welcomeNotice = "Welcome to Fantasy RPG !!!"
	createdNotice = "Character created."
	attackNotice  = "Attack success."
	potionNotice  = "Buy potion success."
	logoutNotice  = "Wallet disconnected."

	maxMessageSize = 4096
	writeWait      = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  2048,
	WriteBufferSize: 2048,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	conn     *websocket.Conn
	send     chan []byte
	progress chan []byte // latest AttackProgress frame only
	done     chan struct{}
	quit     chan struct{} // closed when the writer stops
	owner    string
	sess     *session.Session
}

func newClient(conn *websocket.Conn, owner string, sess *session.Session) *client {
	return &client{
		conn:     conn,
		send:     make(chan []byte, 64),
		progress: make(chan []byte, 1),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		owner:    owner,
		sess:     sess,
	}
}

// Hub serves one game session per websocket connection.
type Hub struct {
	mu         sync.Mutex
	clients    map[*client]struct{}
	newSession func() *session.Session
	board      *leaderboard.Service
}

func NewHub(newSession func() *session.Session, board *leaderboard.Service) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		newSession: newSession,
		board:      board,
	}
}

// Clients returns the number of open connections.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Handler upgrades requests whose bearer or ?token= value parses to a
// wallet address.
func (h *Hub) Handler(parseToken func(string) (string, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner, err := parseToken(auth.TokenFrom(r))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("[hub] upgrade:", err)
			return
		}
		h.HandleWSAuth(conn, owner)
	}
}

// HandleWSAuth binds an authenticated connection to owner's character and
// serves it until the connection closes.
func (h *Hub) HandleWSAuth(conn *websocket.Conn, owner string) {
	c := newClient(conn, owner, h.newSession())
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go c.writer()

	if err := c.sess.Connect(context.Background(), owner); err != nil {
		log.Printf("[hub] %s: connect: %v", owner, err)
		sendError(c, err)
	} else {
		sendJSON(c, "Notice", protocol.Notice{Message: welcomeNotice})
	}
	sendState(c)
	c.reader(h)
}

func (c *client) reader(h *Hub) {
	defer func() {
		c.sess.Disconnect()
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		close(c.done)
	}()
	c.conn.SetReadLimit(maxMessageSize)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[hub] %s: read: %v", c.owner, err)
			}
			return
		}
		var env protocol.MsgEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Printf("[hub] %s: bad envelope", c.owner)
			continue
		}
		if !h.dispatch(c, env) {
			return
		}
	}
}

// dispatch handles one message; false ends the connection.
func (h *Hub) dispatch(c *client, env protocol.MsgEnvelope) bool {
	ctx := context.Background()
	switch env.Type {
	case "GetState":
		sendState(c)

	case "CreateCharacter":
		var msg protocol.CreateCharacter
		_ = json.Unmarshal(env.Data, &msg)
		if _, err := c.sess.CreateCharacter(ctx, msg.Class); err != nil {
			sendError(c, err)
			return true
		}
		sendJSON(c, "Notice", protocol.Notice{Message: createdNotice})
		sendState(c)

	case "Attack":
		// runs on its own goroutine so the reader keeps serving; a second
		// Attack while this one is pending gets BUSY
		go h.attack(c)

	case "BuyPotion":
		if _, err := c.sess.BuyPotion(ctx); err != nil {
			sendError(c, err)
			return true
		}
		sendJSON(c, "Notice", protocol.Notice{Message: potionNotice})
		sendState(c)

	case "GetLeaderboard":
		var msg protocol.GetLeaderboard
		_ = json.Unmarshal(env.Data, &msg)
		h.sendLeaderboard(ctx, c, msg.Order)

	case "Logout":
		c.sess.Disconnect()
		sendJSON(c, "Notice", protocol.Notice{Message: logoutNotice})
		sendState(c)
		return false

	default:
		sendJSON(c, "Error", protocol.Error{
			Code:    string(apperr.CodeInvalidOperation),
			Message: "Unknown message type: " + env.Type,
		})
	}
	return true
}

func (h *Hub) attack(c *client) {
	res, err := c.sess.Attack(context.Background(), func(pct int) {
		sendProgress(c, pct)
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrBusy) {
			log.Printf("[hub] %s: attack: %v", c.owner, err)
		}
		sendError(c, err)
		return
	}
	if res.LowHP {
		sendJSON(c, "Notice", protocol.Notice{Message: session.LowHPMessage})
	}
	sendJSON(c, "BattleResult", protocol.BattleResult{Log: res.Log, Player: res.Player})
	sendJSON(c, "Notice", protocol.Notice{Message: attackNotice})
	sendState(c)
}

func (h *Hub) sendLeaderboard(ctx context.Context, c *client, order string) {
	if h.board == nil {
		sendError(c, apperr.New(apperr.CodeLoadError, "Leaderboard unavailable"))
		return
	}
	var ord leaderboard.Ordering
	if order != "" {
		o, err := leaderboard.ParseOrdering(order)
		if err != nil {
			sendError(c, err)
			return
		}
		ord = o
	}
	lb, err := h.board.Top(ctx, ord)
	if err != nil {
		log.Printf("[hub] leaderboard: %v", err)
		sendError(c, err)
		return
	}
	sendJSON(c, "Leaderboard", lb)
}

func (c *client) writer() {
	defer close(c.quit)
	defer c.conn.Close()
	for {
		select {
		case msg := <-c.progress:
			if err := c.write(msg); err != nil {
				return
			}
		case msg := <-c.send:
			if err := c.writeAfterProgress(msg); err != nil {
				return
			}
		case <-c.done:
			// flush what the last handler queued
			for {
				select {
				case msg := <-c.send:
					if err := c.writeAfterProgress(msg); err != nil {
						return
					}
				default:
					_ = c.conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}

// writeAfterProgress writes a pending progress frame before msg, so a
// result never overtakes the progress that preceded it.
func (c *client) writeAfterProgress(msg []byte) error {
	select {
	case p := <-c.progress:
		if err := c.write(p); err != nil {
			return err
		}
	default:
	}
	return c.write(msg)
}

func (c *client) write(msg []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func sendState(c *client) {
	sendJSON(c, "State", c.sess.Snapshot())
}

func sendError(c *client, err error) {
	sendJSON(c, "Error", protocol.Error{
		Code:    string(apperr.CodeOf(err)),
		Message: apperr.Message(err),
	})
}

func encode(typ string, v any) ([]byte, bool) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[hub] marshal %s: %v", typ, err)
		return nil, false
	}
	out, _ := json.Marshal(protocol.MsgEnvelope{Type: typ, Data: b})
	return out, true
}

// sendJSON queues a message, waiting for room rather than dropping it.
// It gives up once the connection is closing.
func sendJSON(c *client, typ string, v any) {
	out, ok := encode(typ, v)
	if !ok {
		return
	}
	select {
	case c.send <- out:
	case <-c.done:
	case <-c.quit:
	}
}

// sendProgress replaces any progress frame the writer has not sent yet.
// Only the attack goroutine calls it, and the session runs one attack at
// a time.
func sendProgress(c *client, pct int) {
	out, ok := encode("AttackProgress", protocol.AttackProgress{Percent: pct})
	if !ok {
		return
	}
	select {
	case <-c.progress:
	default:
	}
	select {
	case c.progress <- out:
	default:
	}
}
