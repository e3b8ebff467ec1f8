// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"net/http"
)

// SendMessage posts a chat message, optionally referencing an uploaded PDF,
// and returns the assistant's reply.
func (c *Client) SendMessage(ctx context.Context, msg ChatRequest) (*ChatReply, error) {
	var reply ChatReply
	if _, err := c.doEnvelope(ctx, request{method: http.MethodPost, path: "/chat/message", body: msg}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}
