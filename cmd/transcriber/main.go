// Package main provides the entry point for the transcription service and its tooling.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "transcriber",
	Short:         "Audio-to-sheet-music transcription service",
	Long:          "transcriber accepts audio uploads, converts them to MIDI with Basic Pitch, renders MusicXML and serves the results over a REST API.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
