// taskpilot - a to-do service with natural-language command resolution.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morganforge/taskpilot/internal/auth"
	"github.com/morganforge/taskpilot/internal/command"
	"github.com/morganforge/taskpilot/internal/config"
	"github.com/morganforge/taskpilot/internal/match"
	"github.com/morganforge/taskpilot/internal/oracle"
	"github.com/morganforge/taskpilot/internal/server"
	"github.com/morganforge/taskpilot/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to config file (default: ~/.taskpilot/config.toml)")
		addr       = flag.String("addr", "", "listen address, overrides config (host:port)")
		showVer    = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVer {
		fmt.Println("taskpilot " + server.Version)
		return
	}

	if err := run(*configPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addrOverride string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if addrOverride != "" {
		host, port, err := config.SplitAddr(addrOverride)
		if err != nil {
			return fmt.Errorf("invalid -addr: %w", err)
		}
		cfg.Server.Host = host
		cfg.Server.Port = port
	}

	// Sessions need a signing secret. Without one configured, generate an
	// ephemeral secret: sessions then die with the process.
	secret := cfg.Auth.JWTSecret
	if secret == "" {
		secret, err = ephemeralSecret()
		if err != nil {
			return fmt.Errorf("generating session secret: %w", err)
		}
		log.Printf("AUTH SECRET EPHEMERAL | sessions will not survive a restart; set auth.jwt_secret to persist them")
	}
	sessions := auth.NewSessions(secret, cfg.Server.SecureCookies)

	storePath, err := cfg.StorePath()
	if err != nil {
		return fmt.Errorf("resolving store path: %w", err)
	}
	st, err := store.Open(storePath)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()
	log.Printf("STORE OPENED | path=%s", storePath)

	oracleClient := oracle.NewClientWithConfig(&oracle.ClientConfig{
		BaseURL: cfg.Oracle.URL,
		Model:   cfg.Oracle.Model,
		Timeout: time.Duration(cfg.Oracle.TimeoutSecs) * time.Second,
	})

	resolver, err := buildResolver(cfg, st, oracleClient)
	if err != nil {
		return err
	}
	log.Printf("RESOLVER SELECTED | resolver=%s matcher=%s", cfg.Command.Resolver, cfg.Command.Matcher)

	srv := server.NewServer(cfg.Addr(), st, sessions, resolver).
		WithOracleClient(oracleClient).
		WithRateLimiter(server.NewRateLimiter(cfg.Server.RateLimitPerSec, cfg.Server.RateLimitBurst))

	// Hot-reload: only the oracle model can change without a restart.
	if path := resolvedConfigPath(configPath); path != "" {
		watcher, err := config.NewWatcher(path, func(updated *config.Config) {
			oracleClient.SetModel(updated.Oracle.Model)
		})
		if err != nil {
			log.Printf("CONFIG WATCH DISABLED | err=%v", err)
		} else if err := watcher.Watch(); err != nil {
			log.Printf("CONFIG WATCH DISABLED | err=%v", err)
			watcher.Close()
		} else {
			defer watcher.Close()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("SERVER STARTING | addr=%s version=%s", cfg.Addr(), server.Version)
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Printf("SERVER STOPPING | draining connections")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("SERVER STOPPED")
	return nil
}

// loadConfig loads from the explicit path when given, otherwise from the
// default location (missing default file yields defaults, not an error).
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromPath(path)
}

// resolvedConfigPath returns the path the watcher should follow, or "" when
// no config file exists to watch.
func resolvedConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	path, err := config.ConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

func buildResolver(cfg *config.Config, st *store.Store, client *oracle.Client) (command.Resolver, error) {
	var matcher match.Matcher
	switch cfg.Command.Matcher {
	case config.MatcherLevenshtein:
		matcher = match.NewLevenshteinMatcher()
	case config.MatcherRanked:
		matcher = match.NewRankedMatcher()
	default:
		return nil, fmt.Errorf("unknown matcher %q", cfg.Command.Matcher)
	}

	runner := command.NewRunner(st.Todos(), matcher)

	switch cfg.Command.Resolver {
	case config.ResolverKeyword:
		return command.NewKeywordResolver(runner), nil
	case config.ResolverOracle:
		return command.NewOracleResolver(client, runner), nil
	default:
		return nil, fmt.Errorf("unknown resolver %q", cfg.Command.Resolver)
	}
}

func ephemeralSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
