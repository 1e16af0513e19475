package wsbridge

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/solace-ai/agentserver/pkg/auth"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/session"
	"github.com/solace-ai/agentserver/pkg/storage"
)

// closeGrace bounds how long a close-frame write is allowed to block.
const closeGrace = 2 * time.Second

func timeNow() time.Time { return time.Now() }

// defaultAllowedOrigins matches local development front ends, grounded in
// the retrieval pack's newUpgrader default set.
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
}

// Users is the subset of the storage gateway the bridge needs to resolve a
// bearer token's user_id into a row (spec.md §4.4's auth step).
type Users interface {
	GetUser(ctx context.Context, userID int64) (*storage.User, error)
}

// Bridge is the WebSocket protocol bridge (C5): upgrades connections,
// authenticates them, and hands each one off to a conn's state machine.
// Grounded in original_source/websocket_handler.py's WebSocketHandler and
// the retrieval pack's newUpgrader/handleWebSocket shape.
type Bridge struct {
	sessions *session.Manager
	tokens   *auth.TokenIssuer
	users    Users
	upgrader websocket.Upgrader
}

// NewBridge constructs a Bridge. allowedOrigins follows newUpgrader's
// convention: empty defaults to localhost, ["*"] allows any origin.
func NewBridge(sessions *session.Manager, tokens *auth.TokenIssuer, users Users, allowedOrigins []string) *Bridge {
	return &Bridge{
		sessions: sessions,
		tokens:   tokens,
		users:    users,
		upgrader: newUpgrader(allowedOrigins),
	}
}

// newUpgrader builds an Upgrader with origin checking: "*" allows any
// origin (development only), an empty list falls back to localhost
// defaults, and a missing Origin header is allowed (non-browser clients).
func newUpgrader(allowedOrigins []string) websocket.Upgrader {
	if len(allowedOrigins) == 0 {
		allowedOrigins = defaultAllowedOrigins
	}

	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.ToLower(strings.TrimRight(o, "/"))] = true
	}
	allowAll := allowed["*"]

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := strings.ToLower(strings.TrimRight(r.Header.Get("Origin"), "/"))
			if origin == "" {
				return true
			}
			return allowed[origin]
		},
	}
}

// bearerToken extracts a session token from the Authorization header
// ("Bearer <token>") or, failing that, a `?token=` query parameter
// (spec.md §4.4: browsers cannot set WebSocket handshake headers, so a
// query-param fallback is required for same-origin browser clients).
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if strings.HasPrefix(header, "Bearer ") {
			return strings.TrimPrefix(header, "Bearer ")
		}
		return header
	}
	return r.URL.Query().Get("token")
}

// ServeHTTP upgrades the connection, authenticates it, and runs its state
// machine to completion. Auth or protocol-version failures close with 1008
// (policy violation); anything after a clean upgrade that still fails
// closes the same way rather than leaving a half-open socket.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("wsbridge", "upgrade failed", map[string]interface{}{"error": err.Error(), "remote": r.RemoteAddr})
		return
	}

	token := bearerToken(r)
	if token == "" {
		closeUnauthenticated(ws, "missing session token")
		return
	}
	claims, err := b.tokens.Verify(token)
	if err != nil {
		closeUnauthenticated(ws, "invalid or expired session token")
		return
	}

	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		clientID = r.Header.Get("X-Client-Id")
	}
	if clientID == "" {
		closeUnauthenticated(ws, "missing client_id")
		return
	}

	if r.URL.Query().Get("protocol_version") == "" && r.Header.Get("Protocol-Version") == "" {
		closeUnauthenticated(ws, "missing protocol_version")
		return
	}

	if _, err := b.users.GetUser(r.Context(), claims.UserID); err != nil {
		closeUnauthenticated(ws, "unknown user")
		return
	}

	c := newConn(ws, b, claims.UserID, claims.LoginName, clientID)
	logger.InfoCF("wsbridge", "connection authenticated", map[string]interface{}{
		"user_id": claims.UserID, "login_name": claims.LoginName, "client_id": clientID,
	})
	c.run()
}

// closeUnauthenticated sends a 1008 policy-violation close frame directly,
// since newConn (and its cancellable context) has no reason to exist for a
// connection that never reaches the ready state.
func closeUnauthenticated(ws *websocket.Conn, reason string) {
	logger.WarnCF("wsbridge", "rejecting connection", map[string]interface{}{"reason": reason})
	msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason)
	_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	ws.Close()
}
