package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/0xcro3dile/planlaw-go/internal/domain/ports"
	"github.com/0xcro3dile/planlaw-go/internal/domain/usecases"
)

func init() {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Load or build the vector index",
		Long:  "Loads the persisted index, building it from the law sections when it does not exist.",
		Args:  cobra.NoArgs,
		RunE:  runIndex,
	}
	cmd.Flags().Bool("rebuild", false, "Delete the persisted index and build it again")
	RootCmd.AddCommand(cmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rebuild, _ := cmd.Flags().GetBool("rebuild")

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var r ports.Retriever
	if rebuild {
		r, err = a.provisioner.Rebuild(ctx)
	} else {
		r, err = a.provisioner.GetRetriever(ctx)
	}
	if err != nil {
		return err
	}

	if ir, ok := r.(*usecases.IndexRetriever); ok {
		info := ir.Info()
		fmt.Fprintf(cmd.OutOrStdout(), "index: %s\nchunks: %d\ndimension: %d\nembedding model: %s\nbuilt: %s\n",
			a.provisioner.Store().Path(), info.ChunkCount, info.Dimension, info.EmbeddingModel, info.BuiltAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
