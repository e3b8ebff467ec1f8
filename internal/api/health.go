// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

// Health queries GET /health at the server root, outside the API prefix.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	root, err := c.rootURL()
	if err != nil {
		return nil, err
	}
	var h Health
	if err := c.do(ctx, request{method: http.MethodGet, path: root + "/health", absolute: true}, &h); err != nil {
		return nil, err
	}
	return &h, nil
}
