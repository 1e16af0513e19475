// Command replclient is an interactive local test harness that drives the
// per-session workflow engine the way a WebSocket client would — typed
// text turns, plus :abort, which restarts the session (:listen only prints
// that audio input is not supported here) — without needing a browser or
// mobile client to exercise the session manager and workflow engine by hand.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/metrics"
	"github.com/solace-ai/agentserver/pkg/session"
	"github.com/solace-ai/agentserver/pkg/storage"
	"github.com/solace-ai/agentserver/pkg/workflow"
	"github.com/solace-ai/agentserver/pkg/workflow/nodes"
)

func main() {
	agentID := flag.Int64("agent", 0, "agent id to attach to")
	userID := flag.Int64("user", 0, "user id the agent belongs to")
	flag.Parse()

	if *agentID == 0 || *userID == 0 {
		fmt.Println("usage: replclient -agent <id> -user <id>")
		return
	}

	procCfg, err := config.Load()
	if err != nil {
		fmt.Println("config:", err)
		return
	}
	logger.Init(procCfg.LogLevel, true)

	ctx := context.Background()
	store, err := storage.Connect(ctx, procCfg.DatabaseURL)
	if err != nil {
		fmt.Println("connect:", err)
		return
	}
	defer store.Close()

	registry := workflow.NewRegistry()
	nodes.RegisterAll(registry)

	tracker := metrics.NewTracker(procCfg.WorkspaceDir)
	manager := session.NewManager(procCfg, store, registry, nil, nil, tracker)
	defer manager.Close()

	rl, err := readline.New("you> ")
	if err != nil {
		fmt.Println("readline:", err)
		return
	}
	defer rl.Close()

	sess, err := manager.Attach(ctx, session.AttachRequest{
		SessionID: "repl",
		AgentID:   *agentID,
		UserID:    *userID,
	}, session.Callbacks{
		TTSAudio: func(frame []byte) {
			fmt.Printf("[tts audio frame: %d bytes]\n", len(frame))
		},
		TTSStatus: func(state, text string) {
			fmt.Printf("[tts %s] %s\n", state, text)
		},
		AssistantText: func(content string, finished bool) {
			if content != "" {
				fmt.Print(content)
			}
			if finished {
				fmt.Println()
			}
		},
	})
	if err != nil {
		fmt.Println("attach:", err)
		return
	}
	defer manager.Detach(ctx, sess.ID)

	fmt.Println("attached. type a message and press enter; :listen start|stop, :abort, :quit")

	for {
		line, err := rl.Readline()
		if err == io.EOF || err == readline.ErrInterrupt {
			return
		}
		if err != nil {
			fmt.Println("read:", err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case line == ":quit":
			return
		case line == ":abort":
			manager.Detach(ctx, sess.ID)
			sess, err = manager.Attach(ctx, session.AttachRequest{SessionID: "repl", AgentID: *agentID, UserID: *userID}, session.Callbacks{
				TTSStatus:     func(state, text string) { fmt.Printf("[tts %s] %s\n", state, text) },
				AssistantText: func(content string, finished bool) { fmt.Print(content) },
			})
			if err != nil {
				fmt.Println("reattach:", err)
				return
			}
		case strings.HasPrefix(line, ":listen "):
			fmt.Println("[listen is binary-audio only; this harness only drives text turns]")
		default:
			sess.Engine().FeedInputChunk("interrupt_controller", "recognized_text", map[string]interface{}{
				"text": line, "confidence": 1.0, "emotion": "neutral", "audio_file_path": "",
			})
		}
	}
}
