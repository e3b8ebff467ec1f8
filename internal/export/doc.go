// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved transcripts as Markdown, HTML or JSON.
//
// Usage:
//
//	exp, err := export.ForFormat("html", nil)
//	if err != nil {
//		return err
//	}
//	data, err := exp.Export(conv)
//
// Markdown and HTML exports escape user and server text; JSON is the stored
// form and can be read back with encoding/json.
package export
