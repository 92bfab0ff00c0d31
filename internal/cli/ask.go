package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/planlaw-go/internal/domain/apperr"
	"github.com/0xcro3dile/planlaw-go/internal/domain/entities"
	"github.com/0xcro3dile/planlaw-go/internal/domain/usecases"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}
	cmd.Flags().StringP("model", "m", "", "Chat model (default: session.model)")
	cmd.Flags().Float64P("temperature", "t", -1, "Sampling temperature in [0, 1] (default: session.temperature)")
	cmd.Flags().String("variant", "", "System prompt: Original or ExtensiveSummary (default: session.variant)")
	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	question := strings.Join(args, " ")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	sessionCfg, err := askConfig(cmd, a.conversation.Config())
	if err != nil {
		return err
	}
	if err := a.conversation.Reload(ctx, sessionCfg); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	streamed := false
	_, answer, err := a.conversation.Send(ctx, question, usecases.Callbacks{
		OnToken: func(token string) {
			streamed = true
			fmt.Fprint(out, token)
		},
		OnTool: func(name, query string) {
			fmt.Fprintf(errOut, "[%s] %s\n", name, query)
		},
	})
	if err != nil {
		return err
	}
	if !streamed {
		fmt.Fprint(out, answer.Content)
	}
	fmt.Fprintln(out)
	return nil
}

func askConfig(cmd *cobra.Command, base entities.SessionConfig) (entities.SessionConfig, error) {
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		base.Model = v
	}
	if v, _ := cmd.Flags().GetFloat64("temperature"); v >= 0 {
		base.Temperature = v
	}
	if v, _ := cmd.Flags().GetString("variant"); v != "" {
		variant, err := entities.ParseVariant(v)
		if err != nil {
			return base, apperr.Configuration("%v", err)
		}
		base.Variant = variant
	}
	return base, nil
}
