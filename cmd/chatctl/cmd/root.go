// Package cmd implements the chatctl commands.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ashureev/atelier/internal/locale"
	"github.com/ashureev/atelier/internal/widget"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	serverURL   string
	localeFlag  string
	localDir    string
	visitorFile string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "chatctl",
	Short: "Atelier chat assistant client",
	Long: `chatctl drives the Atelier chat widget from a terminal.

By default the transcript is stored on the server under this machine's
visitor id. With --local-dir it is kept in a JSON file instead.

Examples:
  chatctl chat
  chatctl chat --locale ar "أين موقعكم؟"
  chatctl transcript show
  chatctl transcript reset`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		if err := godotenv.Load(); err == nil && !cmd.Flags().Changed("server") {
			if v := os.Getenv("ATELIER_URL"); v != "" {
				serverURL = v
			}
		}
		if !locale.IsValid(localeFlag) {
			return fmt.Errorf("unsupported locale %q (use en or ar)", localeFlag)
		}
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ATELIER_URL", "http://localhost:8080"), "Atelier server URL")
	rootCmd.PersistentFlags().StringVarP(&localeFlag, "locale", "l", string(locale.Default), "Chat locale (en or ar)")
	rootCmd.PersistentFlags().StringVar(&localDir, "local-dir", "", "Store the transcript in this directory instead of on the server")
	rootCmd.PersistentFlags().StringVar(&visitorFile, "visitor-file", defaultVisitorFile(), "File remembering the visitor id")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultVisitorFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".atelier-visitor"
	}
	return filepath.Join(dir, "atelier", "visitor")
}

// client bundles what every command needs.
type client struct {
	locale  locale.Code
	storage widget.Storage
	visitor *visitorJar
}

func newClient() (*client, error) {
	lc := locale.Code(localeFlag)
	jar, err := newVisitorJar(serverURL, visitorFile)
	if err != nil {
		return nil, err
	}

	var storage widget.Storage
	if localDir != "" {
		fs, err := widget.NewFileStorage(localDir)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		storage = fs
	} else {
		storage = widget.NewHTTPStorage(serverURL, lc, jar.HTTPClient())
	}
	return &client{locale: lc, storage: storage, visitor: jar}, nil
}

func (c *client) close() {
	if err := c.visitor.Save(); err != nil {
		slog.Warn("Failed to remember visitor id", "error", err)
	}
}

func printError(w io.Writer, msg string, err error) {
	fmt.Fprintf(w, "Error: %s: %v\n", msg, err)
}
