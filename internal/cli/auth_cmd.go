// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - login, register, logout and whoami.
//
// Examples:
//   pdfchat login bob
//   echo "$PW" | pdfchat login bob --json
//   pdfchat register --username bob --email bob@example.com
//   pdfchat whoami

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/session"
)

func runLogin(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)

	username := firstNonEmpty(p.Positional(0), p.Flag("username", "u"), env.Config.Auth.Username)
	if username == "" {
		var err error
		if username, err = env.Prompter.Prompt("Username: "); err != nil {
			return err
		}
	}
	if username == "" {
		return ErrMissingArgument("username", "pdfchat login <username>")
	}

	password, err := env.Prompter.Password("Password: ")
	if err != nil {
		return err
	}
	if password == "" {
		return ErrMissingArgument("password", "pdfchat login "+username)
	}

	if err := env.Session.Login(ctx, username, password); err != nil {
		return err
	}
	return printSession(env, args, "login", env.Session.Snapshot())
}

func runRegister(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)

	req := api.RegisterRequest{
		Username: firstNonEmpty(p.Flag("username", "u"), p.Positional(0)),
		Email:    p.Flag("email", "e"),
		FullName: p.Flag("full-name", "name"),
	}

	var err error
	if req.Username == "" {
		if req.Username, err = env.Prompter.Prompt("Username: "); err != nil {
			return err
		}
	}
	if req.Email == "" {
		if req.Email, err = env.Prompter.Prompt("Email: "); err != nil {
			return err
		}
	}
	if req.FullName == "" && !p.HasFlag("full-name") {
		if req.FullName, err = env.Prompter.Prompt("Full name (optional): "); err != nil {
			return err
		}
	}
	if req.Username == "" {
		return ErrMissingArgument("username", "pdfchat register --username bob --email bob@example.com")
	}
	if req.Email == "" {
		return ErrMissingArgument("email", "pdfchat register --username bob --email bob@example.com")
	}

	if req.Password, err = env.Prompter.Password("Password: "); err != nil {
		return err
	}
	if req.Password == "" {
		return ErrMissingArgument("password", "pdfchat register")
	}
	if env.Interactive {
		confirm, err := env.Prompter.Password("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != req.Password {
			return NewValidationError("password", "", "passwords do not match")
		}
	}

	if err := env.Session.Register(ctx, req); err != nil {
		return err
	}
	return printSession(env, args, "register", env.Session.Snapshot())
}

func runLogout(_ context.Context, env *Env, args Args) error {
	was := env.Session.Snapshot().Authenticated()
	env.Session.Logout()

	if args.JSON {
		return NewJSONResponse("logout", map[string]bool{"was_logged_in": was}).Write(env.Stdout)
	}
	if !args.Quiet {
		if was {
			fmt.Fprintln(env.Stdout, SuccessStyle.Render("Logged out."))
		} else {
			fmt.Fprintln(env.Stdout, "Not logged in.")
		}
	}
	return nil
}

func runWhoami(ctx context.Context, env *Env, args Args) error {
	state, err := env.RequireSession(ctx)
	if err != nil {
		return err
	}
	if state.User == nil {
		// Resolve only fetches the profile when both tokens are stored.
		if _, err := env.Session.Whoami(ctx); err != nil {
			return err
		}
		state = env.Session.Snapshot()
	}
	return printSession(env, args, "whoami", state)
}

func printSession(env *Env, args Args, command string, state session.State) error {
	if args.JSON {
		return NewJSONResponse(command, sessionData(env, state)).Write(env.Stdout)
	}

	u := state.User
	if u == nil {
		fmt.Fprintln(env.Stdout, SuccessStyle.Render("Logged in."))
		return nil
	}
	if args.Quiet {
		fmt.Fprintln(env.Stdout, u.Username)
		return nil
	}

	if command != "whoami" {
		fmt.Fprintln(env.Stdout, SuccessStyle.Render("Logged in as "+u.DisplayName()))
		return nil
	}
	fmt.Fprintln(env.Stdout, TitleStyle.Render(u.DisplayName()))
	fmt.Fprintln(env.Stdout, RenderField("Username", u.Username))
	fmt.Fprintln(env.Stdout, RenderField("Email", u.Email))
	if u.FullName != "" {
		fmt.Fprintln(env.Stdout, RenderField("Full name", u.FullName))
	}
	fmt.Fprintln(env.Stdout, RenderField("Role", u.Role))
	if !u.CreatedAt.IsZero() {
		fmt.Fprintln(env.Stdout, RenderField("Member since", humanize.Time(u.CreatedAt.Time)))
	}
	if !u.IsActive {
		fmt.Fprintln(env.Stdout, WarningStyle.Render("Account is inactive."))
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
