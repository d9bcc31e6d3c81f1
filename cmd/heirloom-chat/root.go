package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/runixer/heirloom/internal/app"
	"github.com/runixer/heirloom/internal/config"
)

const defaultConfigSubPath = "configs/config.yaml"

// contextKey is a custom type for context keys to avoid collisions.
type contextKey int

const chatterKey contextKey = iota

// chatOptions holds the persistent flag values.
type chatOptions struct {
	cfgFile string
	lang    string
	dbPath  string
	verbose bool
}

// chatter holds the services a command runs against.
type chatter struct {
	cfg      *config.Config
	logger   *slog.Logger
	services *app.Services
	lang     string
}

var rootCmd = &cobra.Command{
	Use:   "heirloom-chat",
	Short: "Talk to museum furniture from the terminal",
	Long: `heirloom-chat runs the persona dialogue without the HTTP server.
Pick a piece of furniture, choose one of the starter questions or type your
own, and get the reply together with three things you could say next.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := &chatOptions{
			cfgFile: mustGetString(cmd, "config"),
			lang:    mustGetString(cmd, "lang"),
			dbPath:  mustGetString(cmd, "db"),
			verbose: mustGetBool(cmd, "verbose"),
		}

		// Load .env from CWD - fail only if config was explicitly provided
		if err := app.LoadEnv(); err != nil {
			if opts.cfgFile != "" {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}

		resolvedCfgPath, err := findConfigPath(opts.cfgFile)
		if err != nil && opts.cfgFile != "" {
			return fmt.Errorf("failed to find config: %w", err)
		}
		cfg, err := config.Load(resolvedCfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		// Quiet by default, verbose shows all logs
		out := io.Discard
		if opts.verbose {
			out = cmd.ErrOrStderr()
		}
		logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))

		c, err := setupChatter(cmd.Context(), cfg, logger, opts, app.Options{})
		if err != nil {
			return fmt.Errorf("failed to start: %w", err)
		}
		cmd.SetContext(context.WithValue(cmd.Context(), chatterKey, c))
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if c := getChatter(cmd); c != nil {
			return c.close()
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: auto-detect)")
	rootCmd.PersistentFlags().String("lang", "", "Conversation language, en or nl (default: bot.language)")
	rootCmd.PersistentFlags().String("db", "", "Database path for generation logs (default: database.path)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose debug output (shows all logs)")
}

// setupChatter builds the services for the CLI. The conversation lives in
// memory, so stored sessions are not used.
func setupChatter(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts *chatOptions, appOpts app.Options) (*chatter, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.lang != "" {
		cfg.Bot.Language = opts.lang
	}
	if opts.dbPath != "" {
		cfg.Database.Path = opts.dbPath
	}
	cfg.Sessions.Backend = "memory"

	services, err := app.Setup(ctx, logger, cfg, appOpts)
	if err != nil {
		return nil, err
	}
	return &chatter{cfg: cfg, logger: logger, services: services, lang: cfg.Bot.Language}, nil
}

func (c *chatter) close() error {
	return c.services.Close()
}

// getChatter retrieves the chatter from the command context.
func getChatter(cmd *cobra.Command) *chatter {
	if cmd.Context() == nil {
		return nil
	}
	if c, ok := cmd.Context().Value(chatterKey).(*chatter); ok {
		return c
	}
	return nil
}

// findConfigPath resolves the config file path.
// Searches in order: provided path, CWD/configs/config.yaml, then defaults.
func findConfigPath(providedPath string) (string, error) {
	if providedPath != "" {
		if _, err := os.Stat(providedPath); err == nil {
			return providedPath, nil
		}
		return "", fmt.Errorf("config file not found: %s", providedPath)
	}
	if _, err := os.Stat(defaultConfigSubPath); err == nil {
		return defaultConfigSubPath, nil
	}
	return "", nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// mustGetString returns a string flag value or panics if flag doesn't exist.
// Flag lookup failures indicate programmer error (typo in flag name).
func mustGetString(cmd *cobra.Command, name string) string {
	val, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(fmt.Sprintf("flag %q not defined: %v", name, err))
	}
	return val
}

// mustGetBool returns a bool flag value or panics if flag doesn't exist.
func mustGetBool(cmd *cobra.Command, name string) bool {
	val, err := cmd.Flags().GetBool(name)
	if err != nil {
		panic(fmt.Sprintf("flag %q not defined: %v", name, err))
	}
	return val
}
