package session

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/solace-ai/agentserver/pkg/chatrecord"
	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/jsontree"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/memory"
	"github.com/solace-ai/agentserver/pkg/metrics"
	"github.com/solace-ai/agentserver/pkg/storage"
	"github.com/solace-ai/agentserver/pkg/workflow"
	"github.com/solace-ai/agentserver/pkg/workflow/nodes"
)

// Store is the subset of the storage gateway the session manager needs,
// narrowed for testability.
type Store interface {
	GetAgent(ctx context.Context, agentID int64) (*storage.Agent, error)
	GetAgentTemplate(ctx context.Context, templateID int64) (*storage.AgentTemplate, error)
	GetUser(ctx context.Context, userID int64) (*storage.User, error)
	SaveAgentConfigAndMemory(ctx context.Context, agentID int64, config, memory *jsontree.Tree) error
}

// AttachRequest names the session the WebSocket bridge is attaching.
type AttachRequest struct {
	SessionID   string
	AgentID     int64
	UserID      int64
	CopilotMode bool
}

// Callbacks are the outbound hooks the WebSocket bridge supplies at attach
// time; the manager wires them to the engine's external connections
// (spec.md §4.3 "register external callbacks").
type Callbacks struct {
	// TTSAudio receives one opus frame per tts.audio_stream chunk.
	TTSAudio func(frame []byte)
	// TTSStatus receives every tts_status lifecycle event except
	// sentence_end, which the original protocol deliberately never
	// surfaces on the wire (see dispatchTTSStatus).
	TTSStatus func(state, text string)
	// AssistantText receives post_route's sentence-complete chunks; a
	// call with finished=true and empty content ends the turn (the
	// WebSocket bridge's `llm {finished:true}` message).
	AssistantText func(content string, finished bool)
}

// Session is one attached session: the running engine plus the session
// identity and user-data accessor the manager needs to detach it later.
type Session struct {
	ID          string
	AgentID     int64
	UserID      int64
	CopilotMode bool

	engine  *workflow.Engine
	profile *Profile

	attachedAt time.Time
}

// Engine returns the session's running workflow engine, for the WebSocket
// bridge to feed external inputs (FeedInputChunk on vad.audio_stream /
// interrupt_controller.recognized_text).
func (s *Session) Engine() *workflow.Engine { return s.engine }

// Profile returns the session's user-data accessor.
func (s *Session) Profile() *Profile { return s.profile }

// analysisTask is one fire-and-forget post-session indexing job (spec.md
// §4.3 "enqueue a session-analysis task to an external work queue"; no
// external broker is wired here — see SPEC_FULL.md/DESIGN.md — so this
// queue is the manager's own internal worker pool).
type analysisTask struct {
	sessionID string
	agentID   int64
	history   []historyTurn
}

type historyTurn struct {
	user      string
	assistant string
}

// Manager owns the attach/detach lifecycle for every live session (C4).
type Manager struct {
	store    Store
	registry *workflow.Registry
	procCfg  *config.Config

	recall  *memory.Recall
	index   *memory.VectorStore
	tracker *metrics.Tracker

	analysisQueue chan analysisTask
	workersWG     sync.WaitGroup

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager constructs a Manager and starts its session-analysis worker
// pool. recall, index, and tracker are all optional (nil disables each).
func NewManager(procCfg *config.Config, store Store, registry *workflow.Registry, recall *memory.Recall, index *memory.VectorStore, tracker *metrics.Tracker) *Manager {
	queueSize := procCfg.SessionAnalysisQueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	m := &Manager{
		store:         store,
		registry:      registry,
		procCfg:       procCfg,
		recall:        recall,
		index:         index,
		tracker:       tracker,
		analysisQueue: make(chan analysisTask, queueSize),
		sessions:      make(map[string]*Session),
	}
	m.startAnalysisWorkers(2)
	return m
}

// Attach loads the agent/template/user rows, builds the user-data accessor,
// resolves AI-provider bindings, instantiates and starts one workflow
// engine, and registers cb against its external connections (spec.md §4.3).
func (m *Manager) Attach(ctx context.Context, req AttachRequest, cb Callbacks) (*Session, error) {
	agent, err := m.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return nil, fmt.Errorf("session: load agent %d: %w", req.AgentID, err)
	}
	if !agent.Alive() {
		return nil, fmt.Errorf("session: agent %d is not alive", req.AgentID)
	}
	if agent.UserID != req.UserID {
		return nil, fmt.Errorf("session: agent %d does not belong to user %d", req.AgentID, req.UserID)
	}

	if _, err := m.store.GetUser(ctx, req.UserID); err != nil {
		return nil, fmt.Errorf("session: load user %d: %w", req.UserID, err)
	}

	var templateConfig *jsontree.Tree
	if agent.TemplateID != 0 {
		tmpl, err := m.store.GetAgentTemplate(ctx, agent.TemplateID)
		if err != nil {
			logger.WarnCF("session", "template load failed, continuing without it", map[string]interface{}{"template_id": agent.TemplateID, "error": err.Error()})
		} else {
			templateConfig = tmpl.AgentConfig
		}
	}

	profile := NewProfile(agent.AgentConfig, templateConfig, agent.MemoryData)

	bundle, err := resolveCapabilities(m.procCfg, profile)
	if err != nil {
		return nil, fmt.Errorf("session: resolve capabilities: %w", err)
	}

	graphPath := config.WorkflowConfigPath(m.procCfg.WorkspaceDir, req.CopilotMode)
	graph, err := config.LoadWorkflowGraph(graphPath)
	if err != nil {
		return nil, fmt.Errorf("session: load workflow graph %s: %w", graphPath, err)
	}

	existingMemory, _ := profile.GetMemory("chat.long_term_memory", map[string]interface{}{}).(map[string]interface{})

	globalVars := map[string]interface{}{
		nodes.GlobalKeySessionID:    req.SessionID,
		nodes.GlobalKeyAgentID:      req.AgentID,
		nodes.GlobalKeyUserID:       req.UserID,
		nodes.GlobalKeyCopilotMode:  req.CopilotMode,
		nodes.GlobalKeyStorage:      m.store,
		nodes.GlobalKeyCapabilities: bundle,
		nodes.GlobalKeyAgentMemory:  existingMemory,
		nodes.GlobalKeyUserProfile:  profile.GlobalVarValue(),
	}
	if m.recall != nil {
		globalVars[nodes.GlobalKeySemanticStore] = m.recall
	}
	if m.tracker != nil {
		globalVars[nodes.GlobalKeyMetricsTracker] = m.tracker
	}

	engine, err := workflow.Load(graph, m.registry, globalVars)
	if err != nil {
		return nil, fmt.Errorf("session: build engine: %w", err)
	}

	registerExternalConnections(engine, cb)

	// Engine.Start derives its own cancellable context internally and tears
	// it down on Stop; the session has no independent lifetime bound beyond
	// the engine's own, so Background is the correct root here.
	engine.Start(context.Background())

	sess := &Session{
		ID:          req.SessionID,
		AgentID:     req.AgentID,
		UserID:      req.UserID,
		CopilotMode: req.CopilotMode,
		engine:      engine,
		profile:     profile,
		attachedAt:  time.Now(),
	}

	m.mu.Lock()
	m.sessions[req.SessionID] = sess
	m.mu.Unlock()

	return sess, nil
}

// registerExternalConnections wires the engine's tts/post_route outputs to
// the WebSocket bridge's callbacks (spec.md §4.3's three named
// registrations), grounded in original_source/workflow_chat.py's attach().
func registerExternalConnections(engine *workflow.Engine, cb Callbacks) {
	engine.RegisterExternalConnection("tts", "audio_stream", func(chunk workflow.Chunk) {
		if cb.TTSAudio == nil {
			return
		}
		m, ok := chunk.(map[string]interface{})
		if !ok {
			return
		}
		data, _ := m["data"].([]byte)
		if len(data) > 0 {
			cb.TTSAudio(data)
		}
	})

	engine.RegisterExternalConnection("tts", "tts_status", func(chunk workflow.Chunk) {
		dispatchTTSStatus(chunk, cb.TTSStatus)
	})

	engine.RegisterExternalConnection("post_route", "sentence_stream", func(chunk workflow.Chunk) {
		if cb.AssistantText == nil {
			return
		}
		if workflow.IsEndSentinel(chunk) {
			cb.AssistantText("", true)
			return
		}
		if text, ok := workflow.TextOf(chunk); ok && text != "" {
			cb.AssistantText(text, false)
		}
	})
}

// dispatchTTSStatus forwards start/stop/sentence_start as the wire `tts`
// message; sentence_end is a deliberate protocol no-op, matching
// original_source/websocket_handler.py exactly — the outbound `tts` message
// schema (spec.md §6.1) never lists state:"sentence_end", only
// "start"|"stop"|"sentence_start". This must not be "fixed" to emit one.
func dispatchTTSStatus(chunk workflow.Chunk, send func(state, text string)) {
	if send == nil {
		return
	}
	m, ok := chunk.(map[string]interface{})
	if !ok {
		return
	}
	state, _ := m["state"].(string)
	switch state {
	case "start", "stop", "sentence_start":
		text, _ := m["text"].(string)
		send(state, text)
	case "sentence_end":
		// intentional no-op
	}
}

// Detach tears down a session's engine, enqueues a fire-and-forget
// session-analysis task when non-copilot, and flushes dirty config/memory
// to storage (spec.md §4.3).
func (m *Manager) Detach(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: %q is not attached", sessionID)
	}
	logger.InfoCF("session", "detaching session", map[string]interface{}{
		"session_id": sessionID, "agent_id": sess.AgentID, "duration_s": time.Since(sess.attachedAt).Seconds(),
	})

	if !sess.CopilotMode {
		m.enqueueAnalysis(sess)
	}

	m.applyRecordMemory(sess)

	if err := m.flush(ctx, sess); err != nil {
		logger.WarnCF("session", "detach flush failed", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
	}

	sess.engine.Stop()
	return nil
}

// applyRecordMemory pulls the chat-record subsystem's compressed
// long-term-memory writeback (spec.md §4.2.5 step 5) into the session's
// profile ahead of the flush, if the compression pipeline ever ran.
func (m *Manager) applyRecordMemory(sess *Session) {
	crn, ok := sess.engine.Node("chat_record")
	if !ok {
		return
	}
	node, ok := crn.(*nodes.ChatRecordNode)
	if !ok || node.Record() == nil {
		return
	}
	mem, dirty := node.Record().Memory()
	if dirty {
		sess.profile.ApplyCompressedMemory(mem)
	}
}

// flush writes back per-agent config/memory on last-writer-wins semantics
// (spec.md §5's shared-resource policy), only when something was actually
// written during the session.
func (m *Manager) flush(ctx context.Context, sess *Session) error {
	configDirty, memoryDirty := sess.profile.Dirty()
	if !configDirty && !memoryDirty {
		return nil
	}
	return m.store.SaveAgentConfigAndMemory(ctx, sess.AgentID, sess.profile.ConfigTree(), sess.profile.MemoryTree())
}

// enqueueAnalysis is fire-and-forget: a full queue drops the task with a
// logged warning rather than blocking the detach path (spec.md §4.3).
func (m *Manager) enqueueAnalysis(sess *Session) {
	crn, ok := sess.engine.Node("chat_record")
	if !ok {
		return
	}
	node, ok := crn.(*nodes.ChatRecordNode)
	if !ok || node.Record() == nil {
		return
	}
	history := node.Record().History()
	if len(history) == 0 {
		return
	}

	task := analysisTask{sessionID: sess.ID, agentID: sess.AgentID, history: pairTurns(history)}

	select {
	case m.analysisQueue <- task:
	default:
		logger.WarnCF("session", "session-analysis queue full, dropping task", map[string]interface{}{"session_id": sess.ID})
	}
}

// startAnalysisWorkers launches n workers draining the analysis queue for
// the process lifetime.
func (m *Manager) startAnalysisWorkers(n int) {
	for i := 0; i < n; i++ {
		m.workersWG.Add(1)
		go func() {
			defer m.workersWG.Done()
			for task := range m.analysisQueue {
				m.runAnalysis(task)
			}
		}()
	}
}

// runAnalysis indexes one detached session's paired turns into the
// semantic store, in the background, off the detach path itself.
func (m *Manager) runAnalysis(task analysisTask) {
	if m.index == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	agentKey := strconv.FormatInt(task.agentID, 10)
	for _, turn := range task.history {
		if turn.user == "" || turn.assistant == "" {
			continue
		}
		m.index.IndexConversation(ctx, task.sessionID, agentKey, turn.user, turn.assistant)
	}
}

// Close stops accepting new analysis work and waits for in-flight tasks.
func (m *Manager) Close() {
	close(m.analysisQueue)
	m.workersWG.Wait()
}

// FlushDirty writes back every currently-attached session with unflushed
// config/memory writes. It is the periodic safety net named in spec.md
// §7's durability notes: a session that stays attached for a long time
// (a long-running voice call) should not lose writes to a crash between
// detaches, so the scheduler's maintenance sweep calls this every tick in
// addition to the detach-time flush.
func (m *Manager) FlushDirty(ctx context.Context) error {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	var firstErr error
	for _, sess := range sessions {
		if err := m.flush(ctx, sess); err != nil {
			logger.WarnCF("session", "periodic flush failed", map[string]interface{}{"session_id": sess.ID, "error": err.Error()})
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		sess.profile.MarkClean()
	}
	return firstErr
}

// pairTurns walks a session's flattened history pairing each user message
// with the next assistant reply (tool turns are skipped; a user message
// with no following assistant reply is dropped unpaired).
func pairTurns(history []chatrecord.Message) []historyTurn {
	var turns []historyTurn
	for i := 0; i < len(history); i++ {
		if history[i].Role != chatrecord.RoleUser || history[i].Content == "" {
			continue
		}
		for j := i + 1; j < len(history); j++ {
			if history[j].Role == chatrecord.RoleAssistant && history[j].Content != "" {
				turns = append(turns, historyTurn{user: history[i].Content, assistant: history[j].Content})
				break
			}
			if history[j].Role == chatrecord.RoleUser {
				break
			}
		}
	}
	return turns
}
