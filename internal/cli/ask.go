// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question.
//
// Examples:
//   pdfchat ask "What is chapter 3 about?"
//   pdfchat ask "Summarize it" --file 6f1c...
//   cat question.txt | pdfchat ask
//
// Flags:
//   -f, --file ID   Reference an uploaded PDF
//   --raw           Skip markdown rendering
//   --save          Save the exchange to history

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/pdfchat-tui/internal/chat"
)

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders content for the terminal, returning it unchanged
// when the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(min(GetTerminalWidth()-4, 100)),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	out, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return out
}

// displayReply prints an assistant reply. Markdown is rendered only for a
// terminal so piped output stays plain.
func displayReply(w io.Writer, env *Env, content string, raw bool) {
	if !raw && env.Config.UI.RenderMarkdown && w == env.Stdout && IsStdoutTTY() {
		fmt.Fprint(w, renderMarkdown(content))
		return
	}
	fmt.Fprintln(w, content)
}

// =============================================================================
// ASK
// =============================================================================

func runAsk(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "raw", "save")

	question := JoinPositionalArgs(p, 0)
	if (question == "" || question == "-") && !env.Interactive {
		data, err := io.ReadAll(io.LimitReader(env.Stdin, 1<<20))
		if err != nil {
			return fmt.Errorf("failed to read question from stdin: %w", err)
		}
		question = string(data)
	}
	if strings.TrimSpace(question) == "" || question == "-" {
		return ErrMissingArgument("question", `pdfchat ask "What is this document about?"`)
	}

	if _, err := env.RequireSession(ctx); err != nil {
		return err
	}

	store := chat.NewStore(env.Client).WithLogger(env.Logger).WithContext(ctx)
	defer store.Close()
	store.AttachFile(p.Flag("file", "f"))

	reply, ok := store.SendAndWait(ctx, question)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrMissingArgument("question", `pdfchat ask "What is this document about?"`)
	}

	if p.BoolFlag("save") {
		if err := saveTranscript(env, store); err != nil {
			env.Logger.Warn("failed to save transcript", "error", err)
		}
	}

	if args.JSON {
		if reply.Failed() {
			return &CommandError{Command: "ask", Action: "send", Reason: reply.Content}
		}
		return NewJSONResponse("ask", AskData{
			Question:    strings.TrimSpace(question),
			Answer:      reply.Content,
			FileID:      store.AttachedFile(),
			FileContext: reply.FileContext,
			Timestamp:   reply.Timestamp,
		}).Write(env.Stdout)
	}

	if reply.Failed() {
		return &CommandError{Command: "ask", Action: "send", Reason: reply.Content}
	}
	displayReply(env.Stdout, env, reply.Content, p.BoolFlag("raw"))
	if reply.FileContext != "" && !args.Quiet {
		fmt.Fprintln(env.Stderr, DimStyle.Render(reply.FileContext))
	}
	return nil
}

// saveTranscript writes the store's conversation to history when it holds
// at least one user message.
func saveTranscript(env *Env, store *chat.Store) error {
	if !store.HasUserMessages() {
		return nil
	}
	history, err := env.History()
	if err != nil {
		return err
	}
	conv := store.Transcript()
	conv.Server = env.Config.API.BaseURL
	conv.Username = env.Session.Snapshot().Username()
	_, err = history.Save(conv)
	return err
}
