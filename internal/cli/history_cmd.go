// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Saved conversation management.
//
// References accept a list position ("1" is the newest), a full ID or a
// unique ID prefix.
//
// Examples:
//   pdfchat history
//   pdfchat history show 1
//   pdfchat history search invoice
//   pdfchat history export conv_3fa2 --format json -o chat.json
//   pdfchat history export 1 --format html -o ~/Documents/
//   pdfchat history delete --all -y

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/pdfchat-tui/internal/export"
	"github.com/jeranaias/pdfchat-tui/internal/storage"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

var historySubcommands = []string{"list", "show", "search", "export", "delete"}

func runHistory(_ context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "y", "yes", "all", "raw")
	history, err := env.History()
	if err != nil {
		return err
	}

	sub := p.Subcommand()
	if sub == "" {
		sub = "list"
	}

	switch sub {
	case "list", "ls":
		metas, err := history.List()
		if err != nil {
			return err
		}
		return printHistory(env, args, metas)

	case "search", "find":
		query := JoinPositionalArgs(p, 1)
		if query == "" {
			return ErrMissingArgument("query", "pdfchat history search invoice")
		}
		metas, err := history.Search(query)
		if err != nil {
			return err
		}
		return printHistory(env, args, metas)

	case "show":
		conv, err := findConversation(history, p.Positional(1))
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history show", conv).Write(env.Stdout)
		}
		md, err := export.NewMarkdownExporter(&export.Options{IncludeTimestamps: true}).Export(conv)
		if err != nil {
			return err
		}
		displayReply(env.Stdout, env, string(md), p.BoolFlag("raw"))
		return nil

	case "export":
		return historyExport(env, args, history, p)

	case "delete", "rm":
		return historyDelete(env, args, history, p)

	default:
		return ErrUnknownSubcommand("history", sub, historySubcommands)
	}
}

func findConversation(history *storage.Store, ref string) (*storage.StoredConversation, error) {
	if ref == "" {
		return nil, ErrMissingArgument("conversation", "pdfchat history show 1")
	}
	conv, err := history.Find(ref)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}
	return conv, nil
}

func printHistory(env *Env, args Args, metas []storage.ConversationMeta) error {
	if metas == nil {
		metas = []storage.ConversationMeta{}
	}
	if args.JSON {
		return NewJSONResponse("history", HistoryData{Conversations: metas}).Write(env.Stdout)
	}
	if args.Quiet {
		for _, m := range metas {
			fmt.Fprintln(env.Stdout, m.ID)
		}
		return nil
	}
	fmt.Fprint(env.Stdout, storage.FormatList(metas))
	if len(metas) == 0 {
		fmt.Fprintln(env.Stdout)
	}
	return nil
}

func historyExport(env *Env, args Args, history *storage.Store, p *ArgParser) error {
	conv, err := findConversation(history, p.Positional(1))
	if err != nil {
		return err
	}

	format := strings.ToLower(p.FlagOrDefault("format", "md"))
	opts := export.DefaultOptions()
	if env.Config != nil && env.Config.UI.Theme == "light" {
		opts.Theme = "light"
	}
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return &ValidationError{Field: "--format", Value: format, Reason: "unsupported format", Example: "--format md, --format html or --format json"}
	}
	data, err := exp.Export(conv)
	if err != nil {
		return err
	}

	out := p.Flag("o", "output")
	if out == "" {
		_, err := env.Stdout.Write(data)
		return err
	}
	if fi, err := os.Stat(out); err == nil && fi.IsDir() {
		out = filepath.Join(out, export.Filename(conv, exp))
	}
	if err := util.WriteFileAtomic(out, data, 0600); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("history export", map[string]string{"id": conv.ID, "path": out, "format": format}).Write(env.Stdout)
	}
	env.info(args, "Exported %s to %s", conv.ID, out)
	return nil
}

func historyDelete(env *Env, args Args, history *storage.Store, p *ArgParser) error {
	yes := p.BoolFlag("y", "yes")

	if p.BoolFlag("all") {
		if !yes {
			ok, err := confirm(env, args, "delete all saved conversations")
			if err != nil || !ok {
				return err
			}
		}
		n, err := history.Clear()
		if err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("history delete", map[string]int{"deleted": n}).Write(env.Stdout)
		}
		env.info(args, "Deleted %d conversation(s).", n)
		return nil
	}

	conv, err := findConversation(history, p.Positional(1))
	if err != nil {
		return err
	}
	if !yes {
		ok, err := confirm(env, args, fmt.Sprintf("delete %q", conv.Summary))
		if err != nil || !ok {
			return err
		}
	}
	if err := history.Delete(conv.ID); err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("history delete", map[string]int{"deleted": 1}).Write(env.Stdout)
	}
	env.info(args, "Deleted %s", conv.ID)
	return nil
}
