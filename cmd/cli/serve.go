package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	api "attendance-bridge/cmd/api"
	adminUsecase "attendance-bridge/internal/admin/usecase"
	"attendance-bridge/internal/attendance/scheduler"
	callbackUsecase "attendance-bridge/internal/callback/usecase"
	commandUsecase "attendance-bridge/internal/command/usecase"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var (
	serveAddr   string
	serveNoPoll bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the WeCom callback and run the poll loop",
	Long: `Start the HTTP server (WeCom callback, health and operator API) and the
attendance poll loop.

Examples:
  attendance-bridge serve
  attendance-bridge serve --addr :8080 --no-poll`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default \":\" + PORT)")
	serveCmd.Flags().BoolVar(&serveNoPoll, "no-poll", false, "serve the callback only, without the poll loop")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Chat commands
	commands := commandUsecase.NewCommandUsecase(a.hr, a.hr, cfg.Location)
	workers := callbackUsecase.NewCommandWorkerService(commands, a.chat, cfg.CommandWorkers, cfg.CommandQueueSize, log)
	workers.Start()
	defer workers.Stop()

	guard := callbackUsecase.NewIdempotencyGuard(cfg.DedupTTL)
	callbacks := callbackUsecase.NewCallbackUsecase(callbackUsecase.Settings{
		Token:    cfg.CallbackToken,
		CorpID:   cfg.CorpID,
		Key:      cfg.AESKey,
		EchoMode: cfg.EchoMode,
	}, guard, workers, log)

	tokens := adminUsecase.NewTokenUsecase(cfg.AdminJWTSecret, cfg.AdminTokenExpiry)
	if cfg.AdminJWTSecret == "" {
		log.Warn(ctx, "ADMIN_JWT_SECRET not set, operator API will reject every request")
	}

	// Poll loop
	if !serveNoPoll {
		poller := scheduler.NewPollScheduler(a.poll, cfg.PollInterval, log)
		poller.Start(ctx)
		defer poller.Stop()
	}

	gin.SetMode(gin.ReleaseMode)
	addr := serveAddr
	if addr == "" {
		addr = ":" + cfg.Port
	}
	server := api.NewHandler(cfg, callbacks, a.poll, tokens, log).Server(addr)

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "server starting",
			"addr", addr,
			"callback_path", cfg.CallbackPath,
			"echo_mode", cfg.EchoMode,
			"state_backend", cfg.StateBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
