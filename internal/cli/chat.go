// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat with input history.
//
// Command: chat
//
// Interactive commands:
//   /help, /h            Show commands
//   /file [ID]           Show or attach an uploaded PDF
//   /detach              Stop referencing the attached PDF
//   /upload PATH         Upload a PDF and attach it
//   /files               List uploaded PDFs
//   /new, /clear         Save and start a new conversation
//   /save                Save the conversation now
//   /load REF            Continue a saved conversation
//   /whoami              Show the logged-in user
//   /quit, /q            Exit (also Ctrl+D)

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/pdfchat-tui/internal/chat"
	"github.com/jeranaias/pdfchat-tui/internal/config"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader reads one line of input per prompt.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader is a lineReader with arrow-key history persisted between runs.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &linerReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close writes the history file with owner-only permissions.
func (r *linerReader) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatREPL is one line-mode chat session.
type chatREPL struct {
	env   *Env
	args  Args
	store *chat.Store
	in    lineReader
	out   io.Writer
}

func runChat(ctx context.Context, env *Env, args Args) error {
	if args.JSON {
		return NewValidationError("--json", "", "chat is interactive; use ask for JSON output")
	}
	state, err := env.RequireSession(ctx)
	if err != nil {
		return err
	}

	p := NewArgParser(args.Raw)
	r := newChatREPL(ctx, env, args, newLinerReader())
	defer r.close()
	r.store.AttachFile(p.Flag("file", "f"))

	if !args.Quiet {
		name := "there"
		if state.User != nil {
			name = state.User.DisplayName()
		}
		fmt.Fprintln(r.out, TitleStyle.Render("pdfchat")+DimStyle.Render("  signed in as "+name))
		fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
		fmt.Fprintln(r.out)
		r.printAssistant(chat.Greeting)
	}
	return r.loop(ctx)
}

func newChatREPL(ctx context.Context, env *Env, args Args, in lineReader) *chatREPL {
	return &chatREPL{
		env:   env,
		args:  args,
		store: chat.NewStore(env.Client).WithLogger(env.Logger).WithContext(ctx),
		in:    in,
		out:   env.Stdout,
	}
}

func (r *chatREPL) loop(ctx context.Context) error {
	for {
		input, err := r.in.Prompt(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		quit, err := r.handle(ctx, input)
		if err != nil {
			fmt.Fprintf(r.env.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
		if quit {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// handle processes one input line and reports whether to exit.
func (r *chatREPL) handle(ctx context.Context, input string) (bool, error) {
	input = strings.TrimSpace(input)
	switch {
	case input == "":
		return false, nil
	case strings.EqualFold(input, "exit"), strings.EqualFold(input, "quit"):
		return true, nil
	case strings.HasPrefix(input, "/"):
		return r.command(ctx, input)
	}

	reply, ok := r.store.SendAndWait(ctx, input)
	if !ok {
		return false, ctx.Err()
	}
	r.printAssistant(reply.Content)
	if reply.FileContext != "" && !r.args.Quiet {
		fmt.Fprintln(r.out, DimStyle.Render(reply.FileContext))
	}
	return false, nil
}

func (r *chatREPL) command(ctx context.Context, input string) (bool, error) {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true, nil

	case "/help", "/h", "/?":
		fmt.Fprintln(r.out, chatHelp)

	case "/file":
		if rest == "" {
			if id := r.store.AttachedFile(); id != "" {
				fmt.Fprintln(r.out, "Attached file: "+id)
			} else {
				fmt.Fprintln(r.out, "No file attached.")
			}
			return false, nil
		}
		info, err := r.env.Uploads.Get(ctx, rest)
		if err != nil {
			return false, notFound(err, "file", rest)
		}
		r.store.AttachFile(info.FileID)
		fmt.Fprintln(r.out, SuccessStyle.Render("Attached "+info.OriginalFilename))

	case "/detach":
		r.store.AttachFile("")
		fmt.Fprintln(r.out, "File detached.")

	case "/upload":
		if rest == "" {
			return false, ErrMissingArgument("path", "/upload report.pdf")
		}
		src, err := upload.OpenFile(rest)
		if err != nil {
			return false, err
		}
		f, err := r.env.Uploads.Upload(ctx, src)
		if err != nil {
			return false, err
		}
		r.store.AttachFile(f.ID)
		fmt.Fprintln(r.out, SuccessStyle.Render("Uploaded and attached "+f.Describe()))

	case "/files":
		files, err := r.env.Uploads.List(ctx)
		if err != nil {
			return false, err
		}
		printFileTable(r.out, files)

	case "/new", "/clear":
		if err := r.autosave(); err != nil {
			return false, err
		}
		r.store.Reset()
		fmt.Fprintln(r.out, DimStyle.Render("Started a new conversation."))
		r.printAssistant(chat.Greeting)

	case "/save":
		if !r.store.HasUserMessages() {
			fmt.Fprintln(r.out, "Nothing to save yet.")
			return false, nil
		}
		if err := saveTranscript(r.env, r.store); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Conversation saved."))

	case "/load":
		if rest == "" {
			return false, ErrMissingArgument("conversation", "/load 1")
		}
		history, err := r.env.History()
		if err != nil {
			return false, err
		}
		conv, err := history.Find(rest)
		if err != nil {
			return false, err
		}
		if err := r.autosave(); err != nil {
			return false, err
		}
		r.store.Restore(conv)
		fmt.Fprintf(r.out, "Loaded %q (%d messages).\n", conv.Summary, len(conv.Messages))

	case "/whoami":
		u, err := r.env.Session.Whoami(ctx)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(r.out, "%s <%s>\n", u.DisplayName(), u.Email)

	default:
		return false, NewValidationError("command", name, "unknown chat command, try /help")
	}
	return false, nil
}

func (r *chatREPL) autosave() error {
	if !r.env.Config.Storage.AutoSave {
		return nil
	}
	return saveTranscript(r.env, r.store)
}

func (r *chatREPL) printAssistant(content string) {
	fmt.Fprintln(r.out, AssistantStyle.Render("assistant>"))
	displayReply(r.out, r.env, content, false)
}

// close saves the conversation when auto-save is on and stops the store.
func (r *chatREPL) close() {
	if err := r.autosave(); err != nil {
		r.env.Logger.Warn("failed to save transcript", "error", err)
	}
	r.store.Close()
	_ = r.in.Close()
}

const chatHelp = `Commands:
  /file [ID]      Show or attach an uploaded PDF
  /detach         Stop referencing the attached PDF
  /upload PATH    Upload a PDF and attach it
  /files          List uploaded PDFs
  /new            Save and start a new conversation
  /save           Save the conversation now
  /load REF       Continue a saved conversation
  /whoami         Show the logged-in user
  /quit           Exit (also Ctrl+D)`
