package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Checker-Finance/chat-client/internal/metrics"
	"github.com/Checker-Finance/chat-client/pkg/config"
	"github.com/Checker-Finance/chat-client/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Load configuration ---
	cfg := config.Load()
	logger.Init(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if cfg.MetricsAddr != "" {
		srv := metrics.StartServer(cfg.MetricsAddr, logger.Named("metrics"))
		defer srv.Shutdown(context.Background()) //nolint:errcheck
		logger.L().Info("metrics.listening", zap.String("addr", cfg.MetricsAddr))
	}

	root, closeApp := newRootCmd(cfg)
	defer closeApp()
	root.SetOut(os.Stdout)
	if err := root.ExecuteContext(ctx); err != nil {
		root.PrintErrln(userMessage(err))
		logger.L().Debug("command.failed", zap.Error(err))
		return 1
	}
	return 0
}

// newRootCmd builds the command tree. The returned func releases whatever the
// executed command opened.
func newRootCmd(cfg *config.Config) (*cobra.Command, func()) {
	var a *app

	root := &cobra.Command{
		Use:           "chat-client",
		Short:         "Command-line client for the chat backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg.BackendURL = strings.TrimRight(cfg.BackendURL, "/")
			var err error
			a, err = newApp(cmd.Context(), cfg)
			return err
		},
	}
	root.PersistentFlags().StringVar(&cfg.BackendURL, "backend", cfg.BackendURL, "chat backend base URL")

	get := func() *app { return a }
	root.AddCommand(
		newLoginCmd(get),
		newLogoutCmd(get),
		newRegisterCmd(get),
		newWhoamiCmd(get),
		newUsersCmd(get),
		newConversationsCmd(get),
		newChatCmd(get),
		newGenerateCmd(get),
		newAssistantsCmd(get),
	)
	return root, func() {
		if a != nil {
			a.close()
		}
	}
}
