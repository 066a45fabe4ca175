package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gridcube/gridcube/internal/pkg/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:     "gridcube",
		Short:   "In-memory multidimensional cell evaluation engine",
		Version: "0.1.0",
	}
	verbose *int
)

func init() {
	verbose = rootCmd.PersistentFlags().IntP("verbose", "v", 0, "Verbosity for logging")
	cobra.OnInitialize(func() { logging.Init(*verbose) })
	rootCmd.AddCommand(loadCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
