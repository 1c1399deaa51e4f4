package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kamir/gowxbot/internal/archive"
	"github.com/kamir/gowxbot/internal/config"
	"github.com/kamir/gowxbot/internal/contacts"
	"github.com/kamir/gowxbot/internal/gateway"
	"github.com/kamir/gowxbot/internal/handler"
	"github.com/kamir/gowxbot/internal/queue"
	"github.com/kamir/gowxbot/internal/router"
	"github.com/kamir/gowxbot/internal/store"
	"github.com/kamir/gowxbot/internal/tasks"
	"github.com/kamir/gowxbot/internal/webhook"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server and outbound drain loop",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	printHeader("🤖 GoWxBot Server")
	fmt.Println("Starting GoWxBot...")

	// 1. Load Config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.Default()

	// 2. Stores
	st, err := store.Open(cfg.Paths.StoreDB)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	tokens := gateway.NewStaticTokenSource(cfg.Gateway.Token)
	q, err := queue.New(cfg.Paths.QueueDB, tokens, queue.Options{
		MinInterval: cfg.Drain.MinInterval(),
		MaxInterval: cfg.Drain.MaxInterval(),
		Timeout:     cfg.Drain.Timeout(),
	}, logger)
	if err != nil {
		fmt.Printf("Failed to open queue: %v\n", err)
		os.Exit(1)
	}
	defer q.Close()

	// 3. Pipeline
	client := gateway.NewClient(cfg.Gateway.BaseURL, q, tokens)
	rt := router.New(st, logger)
	auth := router.NewAuthorizer(st, st)
	registry := handler.NewRegistry(auth, client, logger)
	handler.RegisterBuiltins(registry, client, st)

	arch := archive.NewPublisher(cfg.Archive.Brokers, cfg.Archive.Topic, logger)
	defer arch.Close()
	if arch != nil {
		fmt.Printf("📦 Archiving inbound events to %s\n", cfg.Archive.Topic)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Webhook.Host, cfg.Webhook.Port)
	srv := webhook.NewServer(addr, rt, registry, client, arch, logger)
	srv.SetActorID(cfg.Actor.WxID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. Background loops
	go q.Run(ctx)

	if cfg.Tasks.Enabled {
		sched := tasks.NewScheduler(st, registry, cfg.Tasks.Tick(), logger)
		go sched.Run(ctx)
		fmt.Println("⏰ Task scheduler enabled")
	}

	cache := contacts.NewCache(client, logger)
	go func() {
		refreshCtx, refreshCancel := context.WithTimeout(ctx, 30*time.Second)
		defer refreshCancel()
		if err := cache.Refresh(refreshCtx); err != nil {
			logger.Warn("initial contact refresh failed", "error", err)
			return
		}
		fmt.Printf("👥 Contacts loaded: %d friends, %d chatrooms\n", len(cache.Friends()), len(cache.Chatrooms()))
	}()

	// 5. Shutdown handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()
	}()

	fmt.Printf("🌐 Webhook listening on %s\n", addr)
	if err := srv.Start(ctx); err != nil {
		fmt.Printf("Server error: %v\n", err)
		os.Exit(1)
	}
}
