package main

import (
	"fmt"
	"log/slog"
	"os"

	"notely/internal/client"

	"github.com/spf13/cobra"
)

const defaultAPIURL = "http://localhost:5000"

var (
	verbose   bool
	apiURL    string
	tokenPath string
	output    string
)

var rootCmd = &cobra.Command{
	Use:           "notesctl",
	Short:         "Command line client for the notes API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

		switch output {
		case "table", "json", "yaml":
			return nil
		default:
			return fmt.Errorf("unknown output format %q (want table, json or yaml)", output)
		}
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	api := os.Getenv("NOTES_API_URL")
	if api == "" {
		api = defaultAPIURL
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", api, "Base URL of the notes API (env NOTES_API_URL)")
	rootCmd.PersistentFlags().StringVar(&tokenPath, "token-file", "", "Where the login token is kept (default $XDG_CONFIG_HOME/notesctl/token)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format: table, json or yaml")
}

func tokenFile() (client.TokenFile, error) {
	if tokenPath != "" {
		return client.TokenFile{Path: tokenPath}, nil
	}
	return client.DefaultTokenFile()
}

// authedClient returns a client carrying the saved token.
func authedClient() (*client.Client, error) {
	f, err := tokenFile()
	if err != nil {
		return nil, err
	}
	token, err := f.Load()
	if err != nil {
		return nil, fmt.Errorf("%w (run notesctl login first)", err)
	}
	slog.Debug("using token", "path", f.Path, "api", apiURL)
	return client.New(apiURL, token), nil
}
