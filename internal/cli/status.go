// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - Backend health and session state.
//
// Command: status
// Aliases: s
//
// Examples:
//   pdfchat status
//   pdfchat s --json
//
// Output Fields:
//   API        Configured API root
//   Backend    Health status, version and environment
//   Uploads    Whether the server's upload directory is writable
//   Latency    Round trip of the health probe
//   Session    Logged-in user, or "not logged in"
//
// An unreachable backend exits with the network error code. With --json the
// report is still written and Reachable is false.

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/pdfchat-tui/internal/session"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
)

func runStatus(ctx context.Context, env *Env, args Args) error {
	data := StatusData{APIURL: env.Client.BaseURL()}

	start := time.Now()
	health, healthErr := env.Client.Health(ctx)
	data.LatencyMS = time.Since(start).Milliseconds()
	if healthErr != nil {
		data.Error = healthErr.Error()
	} else {
		data.Reachable = true
		data.Health = health
	}

	// Restoring against an unreachable backend would discard the stored
	// tokens, so offline status only reports whether a session is stored.
	var state session.State
	if data.Reachable {
		env.Session.Resolve(ctx)
		state = env.Session.Snapshot()
	} else if token, err := tokenstore.Lookup(env.Tokens, tokenstore.AccessTokenKey); err == nil {
		state.AccessToken = token
	}
	data.Session = sessionData(env, state)

	if args.JSON {
		return NewJSONResponse("status", data).Write(env.Stdout)
	}

	w := env.Stdout
	fmt.Fprintln(w, TitleStyle.Render("pdfchat status"))
	fmt.Fprintln(w, RenderField("API", data.APIURL))
	if data.Reachable {
		fmt.Fprintln(w, RenderField("Backend", fmt.Sprintf("%s %s (v%s, %s)",
			RenderStatus(health.Status), health.Status, health.Version, health.Environment)))
		uploads := "ok"
		if !health.UploadDirExists || !health.UploadDirWritable {
			uploads = "warning"
		}
		fmt.Fprintln(w, RenderField("Uploads", RenderStatus(uploads)))
		fmt.Fprintln(w, RenderField("Latency", fmt.Sprintf("%dms", data.LatencyMS)))
	} else {
		fmt.Fprintln(w, RenderField("Backend", RenderStatus("unreachable")))
	}

	switch {
	case state.User != nil:
		fmt.Fprintln(w, RenderField("Session", state.Username()))
	case state.Authenticated():
		fmt.Fprintln(w, RenderField("Session", "stored, not verified"))
	default:
		fmt.Fprintln(w, RenderField("Session", DimStyle.Render("not logged in")))
	}
	fmt.Fprintln(w, RenderField("Token store", env.Config.Auth.TokenStore))
	return healthErr
}

func sessionData(env *Env, state session.State) SessionData {
	return SessionData{
		Authenticated: state.Authenticated(),
		User:          state.User,
		TokenStore:    env.Config.Auth.TokenStore,
	}
}
