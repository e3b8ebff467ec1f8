// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api implements the HTTP client for the PDF Chat REST API.
//
// The client covers authentication (login, register, refresh, identity),
// chat messages and PDF uploads. Every call takes a context and is bounded
// by a fixed overall timeout.
//
// # Errors
//
// Failures fall into two classes:
//   - *APIError: the server answered with a non-2xx status; Message carries
//     the server's error detail when one was sent
//   - ErrNetwork: the request never produced a usable response (connection
//     failure, timeout, undecodable body); match with errors.Is
//
// # Usage
//
//	client := api.NewClient(cfg.API.BaseURL).
//	    WithTimeout(cfg.Timeout()).
//	    WithTokenStore(store).
//	    WithRateLimit(cfg.API.RateLimit, cfg.API.RateBurst)
//
//	pair, err := client.Login(ctx, api.Credentials{Username: "bob", Password: "secret"})
package api
