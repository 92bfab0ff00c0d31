// Package cli implements the planlaw commands.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/0xcro3dile/planlaw-go/internal/config"
	"github.com/0xcro3dile/planlaw-go/internal/logger"
)

var (
	configPath string
	logLevel   string
	logJSON    bool

	cfg *config.Config
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:           "planlaw",
	Short:         "Chat with the Plan and Building Law",
	Long:          "A retrieval-augmented chatbot that answers questions about the Norwegian Plan and Building Law.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; it holds OPENAI_API_KEY in local setups.
		_ = godotenv.Load()

		logger.SetupLogger(logLevel, logJSON, false)
		cmd.SetContext(logger.ContextWithLogger(cmd.Context(), logger.GetDefault()))

		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: ./"+config.DefaultPath+" if present)")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error, disabled")
	RootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Log as JSON")
}
