package wsbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/session"
)

// connState is the per-connection lifecycle position named in spec.md
// §4.4's state-machine diagram.
type connState int

const (
	stateConnected connState = iota // before hello
	stateReady                      // after hello, dispatching text/listen/abort/mcp/binary
	stateClosed
)

// conn is one authenticated WebSocket connection (spec.md §4.4, §5: "each
// WebSocket connection owns one connection task plus, after hello, one
// workflow engine"). listening tracks whether `listen{state:"start"}` has
// armed binary frames to feed the VAD node.
type conn struct {
	ws       *websocket.Conn
	bridge   *Bridge
	writeMu  sync.Mutex // gorilla/websocket requires single-writer discipline
	ctx      context.Context
	cancel   context.CancelFunc

	userID    int64
	loginName string
	clientID  string

	state     connState
	listening bool

	sess *session.Session
}

func newConn(ws *websocket.Conn, bridge *Bridge, userID int64, loginName, clientID string) *conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &conn{ws: ws, bridge: bridge, ctx: ctx, cancel: cancel, userID: userID, loginName: loginName, clientID: clientID, state: stateConnected}
}

// run drains inbound frames until the connection closes, cooperating with
// spec.md §5's cancellation model (the connection's ctx is the parent of
// any attached session's engine lifetime only through explicit Detach, not
// shared cancellation — a disconnect tears down the session directly).
func (c *conn) run() {
	defer c.cleanup()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		if msgType == websocket.BinaryMessage {
			c.handleBinary(data)
			continue
		}

		c.handleText(data)
		if c.state == stateClosed {
			return
		}
	}
}

func (c *conn) handleText(data []byte) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.sendError(ErrCodeProtocol, "malformed JSON", nil)
		return
	}

	if c.state == stateConnected && env.Type != "hello" {
		c.sendError(ErrCodeProtocol, "expected hello before any other message", nil)
		return
	}

	switch env.Type {
	case "hello":
		c.handleHello(data)
	case "text":
		c.handleTextMessage(data)
	case "listen":
		c.handleListen(data)
	case "abort":
		c.handleAbort(data)
	case "mcp":
		c.handleMCP(data)
	default:
		c.sendError(ErrCodeProtocol, fmt.Sprintf("unknown message type %q", env.Type), nil)
	}
}

func (c *conn) handleHello(data []byte) {
	var msg helloIn
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeProtocol, "malformed hello", nil)
		return
	}
	c.state = stateReady
	c.sendJSON(helloOut{Type: "hello", Transport: "websocket", AudioParams: audioParams})
}

// handleTextMessage implements spec.md §4.4's `text` dispatch: validate
// ownership (delegated to session.Manager.Attach), create a session if
// absent, reinitialize on agent-id change, and push the turn into
// interrupt_controller.recognized_text.
func (c *conn) handleTextMessage(data []byte) {
	var msg textIn
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeProtocol, "malformed text message", nil)
		return
	}
	if msg.Content == "" {
		c.sendError(ErrCodeProtocol, "text message missing content", nil)
		return
	}

	if err := c.ensureSession(msg.SessionID, msg.AgentID); err != nil {
		c.sendError(ErrCodeUnauthorizedAgent, err.Error(), nil)
		return
	}

	c.sess.Engine().FeedInputChunk("interrupt_controller", "recognized_text", map[string]interface{}{
		"text": msg.Content, "confidence": 1.0, "emotion": "neutral", "audio_file_path": "",
	})
}

// handleListen implements spec.md §4.4's `listen` dispatch: `start` arms
// binary-frame forwarding into the VAD node (attaching a session first if
// agent_id was supplied and none exists yet); `stop` disarms it; `detect`
// is a wake-word hint forwarded as a zero-confidence recognized-text chunk,
// mirroring the same external input `text` uses, per original_source's
// single recognized_text entry point.
func (c *conn) handleListen(data []byte) {
	var msg listenIn
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError(ErrCodeProtocol, "malformed listen message", nil)
		return
	}

	switch msg.State {
	case "start":
		if c.sess == nil {
			if msg.AgentID == 0 {
				c.sendError(ErrCodeProtocol, "listen start requires an initialized workflow or an agent_id", nil)
				return
			}
			if err := c.ensureSession(msg.SessionID, msg.AgentID); err != nil {
				c.sendError(ErrCodeUnauthorizedAgent, err.Error(), nil)
				return
			}
		}
		c.listening = true
	case "stop":
		c.listening = false
	case "detect":
		if c.sess == nil {
			c.sendError(ErrCodeProtocol, "listen detect requires an initialized workflow", nil)
			return
		}
		c.sess.Engine().FeedInputChunk("interrupt_controller", "recognized_text", map[string]interface{}{
			"text": msg.Text, "confidence": 0.0, "emotion": "neutral", "audio_file_path": "",
		})
	default:
		c.sendError(ErrCodeProtocol, fmt.Sprintf("unknown listen state %q", msg.State), nil)
	}
}

// handleAbort requests cooperative cancellation of the current turn
// (spec.md §5): stopping and detaching the engine is the only cancellation
// primitive this bridge has, so abort tears the session down; a subsequent
// text/listen reattaches one. This trades a cheap no-op abort (nothing
// in-flight) for a correct one (something is in-flight) rather than
// building a second, turn-scoped cancellation mechanism the engine does
// not expose.
func (c *conn) handleAbort(data []byte) {
	var msg abortIn
	_ = json.Unmarshal(data, &msg)
	if c.sess == nil {
		return
	}
	logger.InfoCF("wsbridge", "aborting turn", map[string]interface{}{"session_id": c.sess.ID, "reason": msg.Reason})

	// The chat-record node finalizes its partial assistant buffer when the
	// engine stops, so tearing the engine down below is what persists the
	// partial turn; these two sends are the wire-visible half
	// of an abort (spec.md's abort scenario: llm{finished:true} + tts{stop}).
	c.sendAssistantText("", true)
	c.sendTTSStatus("stop", "")
	c.detachSession()
}

// handleMCP is reserved pass-through, not yet implemented (spec.md §4.4):
// record and no-op.
func (c *conn) handleMCP(data []byte) {
	var msg mcpIn
	_ = json.Unmarshal(data, &msg)
	logger.InfoCF("wsbridge", "mcp message received (no-op, reserved)", map[string]interface{}{"session_id": msg.SessionID})
}

func (c *conn) handleBinary(data []byte) {
	if !c.listening || c.sess == nil {
		return
	}
	c.sess.Engine().FeedInputChunk("vad", "audio_stream", map[string]interface{}{"data": data})
}

// ensureSession attaches a new session if none exists, reuses the current
// one if agentID is unchanged, or tears down and reattaches on an agent-id
// change (spec.md §4.4: "if the current session's agent_id differs, tear
// down and reinitialize the workflow for the new agent").
func (c *conn) ensureSession(sessionID string, agentID int64) error {
	if c.sess != nil && c.sess.AgentID == agentID {
		return nil
	}
	if c.sess != nil {
		c.detachSession()
	}
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	sess, err := c.bridge.sessions.Attach(c.ctx, session.AttachRequest{
		SessionID: sessionID,
		AgentID:   agentID,
		UserID:    c.userID,
		// Copilot mode has no selection mechanism on this endpoint — see
		// DESIGN.md's Open Question log; mirrors original_source's
		// _initialize_workflow, which likewise hardcodes copilot_mode=False.
		CopilotMode: false,
	}, session.Callbacks{
		TTSAudio:      c.sendTTSAudio,
		TTSStatus:     c.sendTTSStatus,
		AssistantText: c.sendAssistantText,
	})
	if err != nil {
		return err
	}
	c.sess = sess
	return nil
}

func (c *conn) detachSession() {
	if c.sess == nil {
		return
	}
	if err := c.bridge.sessions.Detach(context.Background(), c.sess.ID); err != nil {
		logger.WarnCF("wsbridge", "session detach failed", map[string]interface{}{"session_id": c.sess.ID, "error": err.Error()})
	}
	c.sess = nil
	c.listening = false
}

func (c *conn) sendTTSAudio(frame []byte) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		logger.WarnCF("wsbridge", "binary write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *conn) sendTTSStatus(state, text string) {
	c.sendJSON(ttsOut{Type: "tts", State: state, Text: text})
}

func (c *conn) sendAssistantText(content string, finished bool) {
	c.sendJSON(llmOut{Type: "llm", Content: content, Finished: finished})
}

func (c *conn) sendError(code int, message string, details map[string]interface{}) {
	c.sendJSON(errorOut{Type: "error", Code: code, Message: message, Details: details})
}

func (c *conn) sendJSON(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(v); err != nil {
		logger.WarnCF("wsbridge", "JSON write failed", map[string]interface{}{"error": err.Error()})
	}
}

// closeWithCode sends a close frame with code and tears the connection down
// (spec.md §4.4: 1008 auth/protocol, 1011 internal error).
func (c *conn) closeWithCode(code int, reason string) {
	c.writeMu.Lock()
	deadline := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, deadline, timeNow().Add(closeGrace))
	c.writeMu.Unlock()
	c.ws.Close()
}

func (c *conn) cleanup() {
	c.state = stateClosed
	c.detachSession()
	c.cancel()
	c.ws.Close()
}
