package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"chatcam/internal/api"
	"chatcam/internal/attachment"
	"chatcam/internal/config"
	"chatcam/internal/hub"
	"chatcam/internal/registry"
	"chatcam/internal/router"
	"chatcam/internal/websocket"
	"chatcam/pkg/interfaces"
)

// Application coordinates the relay's components. Initialization follows
// dependency order: Registry → Router → Hub → Attachments → API → HTTP.
type Application struct {
	config        *config.Config
	registry      *registry.Registry
	messageRouter *router.Router
	messageHub    *hub.Hub
	attachments   interfaces.AttachmentStore
	apiServer     *api.Server
	httpServer    *http.Server
}

// NewApplication builds an application from configuration.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	reg := registry.NewRegistry(cfg.Rooms.RetainEmpty)
	messageRouter := router.NewRouter(reg)
	messageHub := hub.NewHub(reg, messageRouter)

	var attachments interfaces.AttachmentStore
	switch cfg.Attachment.Backend {
	case config.AttachmentBackendRedis:
		attachments = attachment.NewRedisStore(cfg.Attachment.RedisAddr, cfg.Attachment.TTL)
	default:
		attachments = attachment.NewMemoryStore()
	}

	apiServer := api.NewServer(reg, attachments)
	wsHandler := websocket.NewHandler(messageHub, cfg.WebSocket.BufferSize,
		cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	mux := http.NewServeMux()
	mux.Handle("/api/", apiServer)
	mux.Handle("/health", apiServer)
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:        cfg,
		registry:      reg,
		messageRouter: messageRouter,
		messageHub:    messageHub,
		attachments:   attachments,
		apiServer:     apiServer,
		httpServer:    httpServer,
	}, nil
}

// Start launches the hub and the HTTP server. The hub comes up first so the
// server never accepts a session it cannot route for.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting chatcam relay on %s", app.httpServer.Addr)

	if err := app.messageHub.Start(ctx); err != nil {
		return fmt.Errorf("failed to start hub: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.messageHub.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		log.Printf("chatcam relay started")
		return nil
	case <-ctx.Done():
		_ = app.messageHub.Stop()
		return ctx.Err()
	}
}

// Stop shuts down in reverse dependency order: HTTP → Hub → attachments.
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down chatcam relay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	if err := app.messageHub.Stop(); err != nil {
		log.Printf("Hub shutdown error: %v", err)
	}

	if closer, ok := app.attachments.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			log.Printf("Attachment store shutdown error: %v", err)
		}
	}

	log.Printf("chatcam relay shutdown complete")
	return nil
}

// GetAddr returns the server address for external connections.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
