// Command agentserver boots the conversational-agent server: storage
// gateway, AI-provider bindings, the per-session workflow manager, the
// WebSocket bridge, and the periodic maintenance scheduler.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solace-ai/agentserver/pkg/auth"
	"github.com/solace-ai/agentserver/pkg/config"
	"github.com/solace-ai/agentserver/pkg/logger"
	"github.com/solace-ai/agentserver/pkg/memory"
	"github.com/solace-ai/agentserver/pkg/metrics"
	"github.com/solace-ai/agentserver/pkg/scheduler"
	"github.com/solace-ai/agentserver/pkg/session"
	"github.com/solace-ai/agentserver/pkg/storage"
	"github.com/solace-ai/agentserver/pkg/workflow"
	"github.com/solace-ai/agentserver/pkg/workflow/nodes"
	"github.com/solace-ai/agentserver/pkg/wsbridge"
)

func main() {
	procCfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger.Init(procCfg.LogLevel, false)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Connect(ctx, procCfg.DatabaseURL)
	if err != nil {
		logger.ErrorCF("main", "database connect failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(ctx); err != nil {
		logger.ErrorCF("main", "schema init failed", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	index, err := memory.NewVectorStore(procCfg.WorkspaceDir, nil)
	if err != nil {
		logger.WarnCF("main", "semantic memory disabled, vector store init failed", map[string]interface{}{"error": err.Error()})
		index = nil
	}
	var recall *memory.Recall
	if index != nil {
		recall = memory.NewRecall(index)
	}
	tracker := metrics.NewTracker(procCfg.WorkspaceDir)

	registry := workflow.NewRegistry()
	nodes.RegisterAll(registry)

	manager := session.NewManager(procCfg, store, registry, recall, index, tracker)
	defer manager.Close()

	tokens := auth.NewTokenIssuer(procCfg.JWTSecret)
	bridge := wsbridge.NewBridge(manager, tokens, store, procCfg.AllowedWSOrigins)

	sched := scheduler.New([]scheduler.Job{
		{Name: "db_health_probe", Expr: "*/5 * * * *", Run: store.HealthCheck},
		{Name: "dirty_session_flush", Expr: "* * * * *", Run: manager.FlushDirty},
	})
	go sched.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/ws", bridge)
	httpServer := &http.Server{
		Addr:              procCfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.InfoCF("main", "listening", map[string]interface{}{"addr": procCfg.ListenAddr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorCF("main", "server failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	logger.InfoCF("main", "shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}
