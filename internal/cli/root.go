// Package cli implements the groupsync command line interface.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ncn914491/groupsync/internal/auth"
	"github.com/Ncn914491/groupsync/internal/config"
	"github.com/Ncn914491/groupsync/internal/engine"
	"github.com/Ncn914491/groupsync/internal/gateway"
	"github.com/Ncn914491/groupsync/internal/logging"
	"github.com/Ncn914491/groupsync/internal/models"
	"github.com/Ncn914491/groupsync/internal/store"
)

// Execute runs the root command.
func Execute(version string) error {
	return newRootCmd(version).Execute()
}

func newRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "groupsync",
		Short:         "Group chat client for the student portal",
		Long:          "groupsync browses, joins and follows portal group chats from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}
	cmd.PersistentFlags().String("config", "", "Config file path")
	cmd.PersistentFlags().String("server", "", "Portal base URL (overrides config)")
	cmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		newLoginCmd(),
		newGroupsCmd(),
		newJoinCmd(),
		newLeaveCmd(),
		newSendCmd(),
		newWatchCmd(),
	)

	return cmd
}

// loadConfig resolves the effective configuration from file, environment
// and flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	loader := config.NewLoader()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loader.SetConfigFile(path)
	}

	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if server, _ := cmd.Flags().GetString("server"); server != "" {
		cfg.Server.BaseURL = server
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	})
	return cfg, nil
}

// app bundles the wired client stack for a command invocation.
type app struct {
	cfg     *config.Config
	session *auth.Session
	engine  *engine.Engine
	cache   *store.Store
}

// newApp wires the session, gateway, cache and engine from config. The
// stored credential is loaded if present; commands that need one check
// session validity themselves so login can run without it.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	session := auth.NewSession()
	if token, err := auth.LoadToken(cfg.TokenPath()); err == nil {
		if err := session.SetToken(token); err != nil {
			return nil, err
		}
	}

	gw, err := gateway.NewHTTPClient(gateway.HTTPClientConfig{
		BaseURL: cfg.Server.BaseURL,
		Timeout: cfg.Server.Timeout,
	}, session)
	if err != nil {
		return nil, err
	}

	var (
		cache *store.Store
		opts  []engine.Option
	)
	if cfg.Cache.Enabled {
		cache, err = store.Open(cfg.CachePath(), store.Options{BusyTimeoutMs: cfg.Cache.BusyTimeoutMs})
		if err != nil {
			// The cache is an optimization; run without it.
			logging.Warn().Err(err).Str("path", cfg.CachePath()).Msg("snapshot cache unavailable")
		} else {
			opts = append(opts, engine.WithCache(cache))
		}
	}

	var self models.User
	if token, err := session.Token(); err == nil {
		id, name := auth.Identity(token)
		self = models.User{ID: id, DisplayName: name}
	}

	eng := engine.New(engine.Config{
		PollInterval:   cfg.Poll.Interval,
		RefreshMode:    cfg.Poll.RefreshMode,
		CharacterLimit: cfg.Compose.CharacterLimit,
		Self:           self,
	}, gw, session, opts...)

	return &app{cfg: cfg, session: session, engine: eng, cache: cache}, nil
}

func (a *app) Close() {
	a.engine.Close()
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

// requireSession fails fast with a hint when no usable credential exists.
func (a *app) requireSession() error {
	if a.session.Valid() {
		return nil
	}
	return fmt.Errorf("not logged in (run `groupsync login` first)")
}
