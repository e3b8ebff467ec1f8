// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// env.go - Shared wiring for every command: config, logging, token store,
// API client and the session, upload and history components.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/config"
	"github.com/jeranaias/pdfchat-tui/internal/logging"
	"github.com/jeranaias/pdfchat-tui/internal/session"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
)

// Env holds the components a command works with.
type Env struct {
	Config *config.Config

	// ConfigPath is the file the config was (or would be) loaded from.
	ConfigPath string

	Logger  *slog.Logger
	Tokens  tokenstore.Store
	Client  *api.Client
	Session *session.Manager
	Uploads *upload.Handler

	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	Prompter Prompter

	// Interactive is true when stdin is a terminal. It gates prompts for
	// confirmation and reading the question from a pipe.
	Interactive bool

	history *storage.Store
	closers []func() error
}

// LoadConfig loads the configuration named by args, or the default one,
// and applies the command-line overrides.
func LoadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path = args.ConfigPath
		err  error
	)
	if path != "" {
		config.LoadDotEnv()
		cfg, err = config.LoadFromPath(path)
	} else {
		path, _ = config.ConfigPathTOML()
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, path, err
	}

	if args.APIURL != "" {
		cfg.API.BaseURL = args.APIURL
	}
	if args.TokenStore != "" {
		cfg.Auth.TokenStore = args.TokenStore
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, path, nil
}

// NewEnv builds the environment for a command run from a terminal.
func NewEnv(args Args) (*Env, error) {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}

	logFile, err := cfg.LogPath()
	if err != nil {
		return nil, err
	}
	logger, err := logging.Init(logging.Options{
		File:       logFile,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Stderr:     args.Verbose,
	})
	if err != nil {
		return nil, err
	}

	tokenPath, err := cfg.TokenPath()
	if err != nil {
		logger.Close()
		return nil, err
	}
	tokens, err := tokenstore.Open(cfg.Auth.TokenStore, tokenPath)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	env := Wire(cfg, tokens, logger.Logger)
	env.ConfigPath = path
	env.closers = append(env.closers, tokens.Close, logger.Close)
	return env, nil
}

// Wire assembles an Env around an existing config, token store and logger,
// using the process's standard streams.
func Wire(cfg *config.Config, tokens tokenstore.Store, logger *slog.Logger) *Env {
	client := api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.Timeout()).
		WithTokenStore(tokens).
		WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst).
		WithLogger(logger).
		WithUserAgent("pdfchat/" + Version)

	return &Env{
		Config:      cfg,
		Logger:      logger,
		Tokens:      tokens,
		Client:      client,
		Session:     session.NewManager(client, tokens, logger),
		Uploads:     upload.NewHandler(client).WithLogger(logger),
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Prompter:    newTerminalPrompter(os.Stdin, os.Stderr),
		Interactive: IsTTY(),
	}
}

// History opens the transcript store on first use.
func (e *Env) History() (*storage.Store, error) {
	if e.history != nil {
		return e.history, nil
	}
	dir, err := e.Config.ConversationsDir()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewStore(dir, e.Config.Storage.MaxConversations)
	if err != nil {
		return nil, err
	}
	e.history = store
	return store, nil
}

// RequireSession restores the stored session and fails with
// ErrNotLoggedIn when there is none.
func (e *Env) RequireSession(ctx context.Context) (session.State, error) {
	e.Session.Resolve(ctx)
	state := e.Session.Snapshot()
	if !state.Authenticated() {
		return state, ErrNotLoggedIn
	}
	return state, nil
}

// Close releases the token store and log file.
func (e *Env) Close() error {
	var errs []error
	for _, c := range e.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// info prints a progress line to stderr unless quiet or in JSON mode.
func (e *Env) info(args Args, format string, a ...interface{}) {
	if args.Quiet || args.JSON {
		return
	}
	fmt.Fprintf(e.Stderr, format+"\n", a...)
}
