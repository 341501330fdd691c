package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/abem93/progress-widgets/internal/auth"
	"github.com/abem93/progress-widgets/internal/middleware"
	"github.com/abem93/progress-widgets/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
)

// EventSession is the only event type on the session stream.
const EventSession = "session"

// SessionEvent is the JSON message sent to connected clients. A null session
// means the client is signed out.
type SessionEvent struct {
	Type    string        `json:"type"`
	Session *auth.Session `json:"session"`
}

// connection wraps a websocket connection with its user ID
type connection struct {
	conn   *websocket.Conn
	userID string
	mu     sync.Mutex
}

func (c *connection) send(event SessionEvent) error {
	msg, err := json.Marshal(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

// Hub tracks open session streams per user.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*connection]bool // userID -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[*connection]bool)}
}

func (h *Hub) register(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[conn.userID] == nil {
		h.rooms[conn.userID] = make(map[*connection]bool)
	}
	h.rooms[conn.userID][conn] = true
	log.Infof("WS register: user %s (total: %d)", conn.userID, len(h.rooms[conn.userID]))
}

func (h *Hub) unregister(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[conn.userID]; ok {
		delete(conns, conn)
		log.Infof("WS unregister: user %s (remaining: %d)", conn.userID, len(conns))
		if len(conns) == 0 {
			delete(h.rooms, conn.userID)
		}
	}
}

// Connections reports how many streams userID has open.
func (h *Hub) Connections(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[userID])
}

// Publish sends session to every stream of userID. Publishing nil signs the
// streams out and closes them.
func (h *Hub) Publish(userID string, session *auth.Session) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.rooms[userID]
	if !ok {
		return
	}
	log.Infof("WS publish: session change to %d connection(s) of user %s", len(conns), userID)

	for c := range conns {
		if err := c.send(SessionEvent{Type: EventSession, Session: session}); err != nil {
			log.Warnf("WS write error: %v", err)
		}
		if session == nil {
			c.conn.Close()
		}
	}
}

// SessionUpgrade checks the upgrade request and validates the JWT, taken
// from ?token= or the Authorization header.
func (h *Handler) SessionUpgrade() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		tokenString := c.Query("token")
		if tokenString == "" {
			tokenString, _ = middleware.BearerToken(c)
		}
		if tokenString == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing authentication token",
			})
		}

		claims, err := h.Tokens.Verify(c.UserContext(), tokenString)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals("userId", claims.UserID)
		c.Locals("email", claims.Email)
		c.Locals("expiresAt", claims.ExpiresAt)
		return c.Next()
	}
}

// SessionSocket streams session changes for the authenticated user. The
// first event carries the resolved session; expiry of the token sends null
// and closes the stream.
func (h *Handler) SessionSocket(c *websocket.Conn) {
	userID, ok := c.Locals("userId").(string)
	if !ok || userID == "" {
		c.Close()
		return
	}
	email, _ := c.Locals("email").(string)

	conn := &connection{conn: c, userID: userID}
	session := &auth.Session{UID: userID, Email: email}
	if err := conn.send(SessionEvent{Type: EventSession, Session: session}); err != nil {
		c.Close()
		return
	}

	h.Sessions.register(conn)
	defer h.Sessions.unregister(conn)

	if exp, ok := c.Locals("expiresAt").(*jwt.NumericDate); ok && exp != nil {
		timer := time.AfterFunc(time.Until(exp.Time), func() {
			log.Infof("WS session: token of user %s expired", userID)
			_ = conn.send(SessionEvent{Type: EventSession})
			c.Close()
		})
		defer timer.Stop()
	}

	// Keep connection alive; the client only sends pings.
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func sessionOf(u models.User) auth.Session {
	return auth.Session{UID: u.ID, Email: u.Email}
}
