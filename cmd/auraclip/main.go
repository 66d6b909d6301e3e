package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "auraclip",
	Short: "Aura Clip turns long videos into highlight clips",
	Long: `Aura Clip is a local agent that imports videos, detects scene changes
with ffmpeg and exports selected scenes as clips. "serve" runs the agent;
every other command is a thin client for its HTTP API.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
