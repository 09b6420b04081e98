// Package main is the entry point for the aicommits CLI.
// aicommits manages and verifies the LLM clients used to generate commit
// messages.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/aicommits/aicommits/internal/cmd"
	apperrors "github.com/aicommits/aicommits/internal/pkg/errors"
)

// Version information - set via ldflags during build
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// AICOMMITS_* overrides may come from a .env file in the working directory.
	_ = godotenv.Load()

	rootCmd := cmd.NewRootCmd(version, commit, date)
	if err := rootCmd.Execute(); err != nil {
		if apperrors.IsVerbose() {
			fmt.Fprintln(os.Stderr, apperrors.FormatErrorVerbose(err))
		} else {
			fmt.Fprintln(os.Stderr, apperrors.FormatError(err))
		}
		os.Exit(apperrors.GetExitCode(err))
	}
}
