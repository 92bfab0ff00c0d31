package main

import (
	"context"
	"fmt"
	"os"

	"github.com/0xcro3dile/planlaw-go/internal/cli"
)

func main() {
	if err := cli.RootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
