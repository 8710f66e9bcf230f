// Package main implements focus, the terminal client for DevFocus.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harlequingg/devfocus/internal/client"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("error: ")+err.Error())
		var authErr *client.AuthError
		if errors.As(err, &authErr) {
			fmt.Fprintln(os.Stderr, "your session has expired; run `focus login` to sign in again")
		}
		os.Exit(1)
	}
}

var (
	configPath string
	serverFlag string

	// cfg is loaded before every command runs.
	cfg *Config
)

var rootCmd = &cobra.Command{
	Use:           "focus",
	Short:         "DevFocus - Pomodoro focus sessions for developers",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load .env: %w", err)
		}
		if configPath == "" {
			p, err := defaultConfigPath()
			if err != nil {
				return err
			}
			configPath = p
		}
		c, err := LoadConfig(configPath)
		if err != nil {
			return err
		}
		c.applyEnv()
		if serverFlag != "" {
			c.Server = serverFlag
		}
		cfg = c
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.config/devfocus/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "API server URL (overrides the config file)")
}

// apiClient returns a client for the configured server. Commands that need
// a signed-in user should use authedClient.
func apiClient() *client.Client {
	return client.New(cfg.Server, cfg.Token)
}

func authedClient() (*client.Client, error) {
	if cfg.Token == "" {
		return nil, errors.New("not signed in; run `focus login` first")
	}
	return apiClient(), nil
}
