package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "labface",
	Short: "Face embedding index and matching service for LabFace",
	Long: `LabFace keeps enrolled face embeddings in a database, mirrors them in an
in-memory index and identifies the closest enrolled subject for a query
face. It runs as an HTTP service or as one-off CLI commands.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
