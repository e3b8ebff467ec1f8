// pdfchat - a terminal client for the PDF Chat service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/pdfchat-tui/internal/chat"
	"github.com/jeranaias/pdfchat-tui/internal/cli"
	"github.com/jeranaias/pdfchat-tui/internal/config"
	"github.com/jeranaias/pdfchat-tui/internal/ui/app"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args, err := cli.Parse(os.Args[1:])
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}

	env, err := cli.NewEnv(args)
	if err != nil {
		cli.DisplayError(os.Stderr, err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if cmd == cli.CmdTUI {
		err = runTUI(ctx, env)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error running pdfchat: %v\n", err)
		}
	} else {
		err = cli.Execute(ctx, env, cmd, args)
	}

	stop()
	env.Close()
	os.Exit(cli.GetExitCode(err))
}

// runTUI starts the full-screen interface and blocks until it exits.
func runTUI(ctx context.Context, env *cli.Env) error {
	store := chat.NewStore(env.Client).WithLogger(env.Logger).WithContext(ctx)
	defer store.Close()

	history, err := env.History()
	if err != nil {
		env.Logger.Warn("transcript history unavailable", "error", err)
		history = nil
	}

	m := app.New(ctx, app.Deps{
		Config:  env.Config,
		Session: env.Session,
		Chat:    store,
		Uploads: env.Uploads,
		History: history,
		Logger:  env.Logger,
	})

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)

	defer env.Session.Forward(p)()
	defer store.Forward(p)()

	if err := config.EnsureConfigDir(); err == nil {
		w, err := config.NewWatcher(env.ConfigPath,
			func(cfg *config.Config) { p.Send(app.ConfigReloadedMsg{Config: cfg}) },
			func(err error) { env.Logger.Warn("config reload failed", "error", err) },
		)
		if err == nil {
			if err := w.Watch(); err != nil {
				env.Logger.Warn("config watch failed", "error", err)
			}
			defer w.Close()
		}
	}

	env.Logger.Info("tui started", "api", env.Config.API.BaseURL)
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
