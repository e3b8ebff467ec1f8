// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, creds Credentials) (*TokenPair, error) {
	var pair TokenPair
	err := c.do(ctx, request{method: http.MethodPost, path: "/auth/login", body: creds}, &pair)
	if err != nil {
		return nil, err
	}
	return &pair, nil
}

// Register creates an account and returns the new user's profile.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*UserProfile, error) {
	var user UserProfile
	if _, err := c.doEnvelope(ctx, request{method: http.MethodPost, path: "/auth/register", body: req}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Refresh exchanges a refresh token for a new token pair.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{refreshToken}

	var pair TokenPair
	if err := c.do(ctx, request{method: http.MethodPost, path: "/auth/refresh", body: body}, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// Me fetches the identity of the token's owner. An empty token falls back
// to the stored access token.
func (c *Client) Me(ctx context.Context, token string) (*UserProfile, error) {
	var user UserProfile
	if err := c.do(ctx, request{method: http.MethodGet, path: "/auth/me", token: token}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
