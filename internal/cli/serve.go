package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpserver "github.com/0xcro3dile/planlaw-go/internal/infrastructure/http"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

func init() {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat web UI",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	cmd.Flags().String("addr", "", "Listen address (overrides server.addr)")
	RootCmd.AddCommand(cmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.FromContext(ctx)

	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Index.Watch {
		if err := a.watchIndex(ctx); err != nil {
			log.Warn("Index watch disabled", "error", err)
		}
	}

	// Build the first session up front so a missing index is built before the
	// first question. Failures are reported in the UI on the next attempt.
	if err := a.conversation.Reload(ctx, a.conversation.Config()); err != nil {
		log.Error("Initial session failed", "error", err)
	}

	srv, err := httpserver.NewServer(a.conversation, a.models.Models(), addr, log)
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}
