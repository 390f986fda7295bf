package websocket

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"relay-backend/internal/middleware"
)

const writeWait = 10 * time.Second

type tokenVerifier interface {
	Verify(authHeader string) (string, error)
	VerifyToken(token string) (string, error)
}

// UpdateSource delivers an owner's update payloads until ctx is done.
type UpdateSource interface {
	Subscribe(ctx context.Context, ownerID string) (<-chan []byte, error)
}

// Hub pushes newly stored exchanges to every open socket of their owner.
// Each owner with at least one socket holds one subscription.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	cancelFuncs map[string]context.CancelFunc
	updates     UpdateSource
	verifier    tokenVerifier
	upgrader    websocket.Upgrader
}

func NewHub(updates UpdateSource, verifier tokenVerifier, allowedOrigin string) *Hub {
	return &Hub{
		connections: make(map[string][]*websocket.Conn),
		cancelFuncs: make(map[string]context.CancelFunc),
		updates:     updates,
		verifier:    verifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "*" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on a WebSocket handshake, so the token may
	// also arrive as a query parameter.
	var (
		userID string
		err    error
	)
	if tokenStr := r.URL.Query().Get("token"); tokenStr != "" {
		userID, err = h.verifier.VerifyToken(tokenStr)
	} else {
		userID, err = h.verifier.Verify(r.Header.Get("Authorization"))
	}
	if err != nil {
		var authErr *middleware.AuthError
		if errors.As(err, &authErr) {
			http.Error(w, http.StatusText(authErr.Status()), authErr.Status())
			return
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "owner", userID, "error", err)
		return
	}

	h.registerConnection(userID, conn)

	// Keep connection alive and handle disconnect
	go func() {
		defer h.unregisterConnection(userID, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], conn)

	// Start pub/sub subscription if this is the first connection for this user
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribe(ctx, userID)
	}

	slog.Info("websocket connected", "owner", userID, "connections", len(h.connections[userID]))
}

func (h *Hub) unregisterConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[userID]
	for i, c := range conns {
		if c == conn {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	// If no more connections, cancel pub/sub
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	slog.Info("websocket disconnected", "owner", userID)
}

func (h *Hub) subscribe(ctx context.Context, userID string) {
	updates, err := h.updates.Subscribe(ctx, userID)
	if err != nil {
		slog.Warn("websocket subscription failed", "owner", userID, "error", err)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-updates:
			if !ok {
				return
			}
			h.broadcast(userID, data)
		}
	}
}

// broadcast only runs on the owner's subscription goroutine, so each socket
// has a single writer. Writes happen outside the hub lock; a slow socket
// stalls only its own owner's updates.
func (h *Hub) broadcast(userID string, data []byte) {
	h.mu.RLock()
	conns := append([]*websocket.Conn(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Warn("websocket write failed", "owner", userID, "error", err)
		}
	}
}

// Close drops every socket and subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.connections {
		for _, conn := range conns {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			conn.Close()
		}
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
		}
	}
	h.connections = make(map[string][]*websocket.Conn)
	h.cancelFuncs = make(map[string]context.CancelFunc)
}
