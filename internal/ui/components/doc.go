// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the reusable pieces of the pdfchat screens:
// the header with its tabs, the bottom status bar and transient toasts.
//
// Components are plain values rendered with View; they hold no tea.Model
// state of their own beyond what the owning screen sets on them.
package components
