// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch for pdfchat.
package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command identifies the subcommand to run.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdRegister
	CmdLogout
	CmdWhoami
	CmdAsk
	CmdChat
	CmdUpload
	CmdFiles
	CmdHistory
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// commandNames maps every accepted name, aliases included, to its command.
var commandNames = map[string]Command{
	"tui":           CmdTUI,
	"login":         CmdLogin,
	"register":      CmdRegister,
	"signup":        CmdRegister,
	"logout":        CmdLogout,
	"whoami":        CmdWhoami,
	"me":            CmdWhoami,
	"ask":           CmdAsk,
	"chat":          CmdChat,
	"upload":        CmdUpload,
	"files":         CmdFiles,
	"pdfs":          CmdFiles,
	"history":       CmdHistory,
	"conversations": CmdHistory,
	"status":        CmdStatus,
	"s":             CmdStatus,
	"config":        CmdConfig,
	"version":       CmdVersion,
	"help":          CmdHelp,
}

// String returns the canonical command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdLogin:
		return "login"
	case CmdRegister:
		return "register"
	case CmdLogout:
		return "logout"
	case CmdWhoami:
		return "whoami"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdUpload:
		return "upload"
	case CmdFiles:
		return "files"
	case CmdHistory:
		return "history"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	default:
		return "help"
	}
}

// Args holds the parsed command line.
type Args struct {
	// Global flags
	JSON       bool
	Quiet      bool
	Verbose    bool
	APIURL     string
	ConfigPath string
	TokenStore string

	// Raw is everything after the command name, global flags removed.
	Raw []string
}

const usageText = `pdfchat - terminal client for PDF Chat

Chat with an assistant about your PDF documents from the terminal.

Usage:
  pdfchat                           Start the full-screen interface (default)
  pdfchat login [username]          Log in (password is prompted)
  pdfchat register                  Create an account, then log in
  pdfchat logout                    Forget the stored session
  pdfchat whoami                    Show the logged-in user
  pdfchat ask "question"            Ask one question and print the reply
  pdfchat chat                      Line-mode chat with input history
  pdfchat upload <file.pdf>         Upload a PDF (max 10MB)
  pdfchat files [subcommand]        Manage uploaded PDFs
  pdfchat history [subcommand]      Saved conversations
  pdfchat status, s                 Backend health and session state
  pdfchat config [show|path|set]    Configuration
  pdfchat version                   Version information
  pdfchat help                      This help

Ask:
  pdfchat ask "summarize chapter 2" --file <id>
    -f, --file ID        Reference an uploaded PDF
    --raw                Print the reply without markdown rendering

Files:
  pdfchat files list                List uploaded PDFs (default)
  pdfchat files show <id>           Show one file's metadata
  pdfchat files download <id> [-o DIR]
  pdfchat files delete <id> [-y]
  pdfchat files stats               Upload statistics

History:
  pdfchat history list              List saved conversations (default)
  pdfchat history show <ref>        Print a conversation (index, id or id prefix)
  pdfchat history search <text>     Find conversations mentioning text
  pdfchat history export <ref> [--format md|json] [-o FILE]
  pdfchat history delete <ref>|--all [-y]

Config:
  pdfchat config show               Print the effective configuration
  pdfchat config path               Print the config file location
  pdfchat config set <key> <value>  Change one setting

Global flags:
  --json                 Machine-readable output
  -q, --quiet            Minimal output
  -v, --verbose          Mirror log records to stderr
  --api-url URL          Backend API root (default http://localhost:8000/api/v1)
  --config PATH          Config file (default ~/.pdfchat/config.toml)
  --token-store KIND     file, sqlite or memory

Environment:
  PDFCHAT_API_URL, PDFCHAT_TIMEOUT, PDFCHAT_TOKEN_STORE, PDFCHAT_LOG_LEVEL,
  PDFCHAT_THEME, PDFCHAT_HOME. A .env file in the working directory is read
  first.

Version: %s
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, Version)
}

// Parse parses os.Args-style arguments (without the program name).
// No arguments means the TUI.
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	name := strings.ToLower(remaining[0])
	args.Raw = remaining[1:]

	switch name {
	case "-h", "--help":
		return CmdHelp, args, nil
	case "--version":
		return CmdVersion, args, nil
	}

	cmd, ok := commandNames[name]
	if !ok {
		verr := &ValidationError{Field: "command", Value: remaining[0], Reason: "unknown command"}
		if s := SuggestCommand(name); s != "" {
			verr.Example = "pdfchat " + s
		}
		return CmdHelp, args, verr
	}
	return cmd, args, nil
}

func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var args Args
	var remaining []string

	value := func(i *int, flag string) (string, error) {
		if *i+1 >= len(argv) {
			return "", ErrMissingArgument(flag, "pdfchat "+flag+" <value>")
		}
		*i++
		return argv[*i], nil
	}

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		if arg == "--" {
			remaining = append(remaining, argv[i:]...)
			break
		}

		var err error
		switch {
		case arg == "--json":
			args.JSON = true
		case arg == "-q" || arg == "--quiet":
			args.Quiet = true
		case arg == "-v" || arg == "--verbose":
			args.Verbose = true
		case arg == "--api-url":
			args.APIURL, err = value(&i, arg)
		case strings.HasPrefix(arg, "--api-url="):
			args.APIURL = strings.TrimPrefix(arg, "--api-url=")
		case arg == "--config":
			args.ConfigPath, err = value(&i, arg)
		case strings.HasPrefix(arg, "--config="):
			args.ConfigPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--token-store":
			args.TokenStore, err = value(&i, arg)
		case strings.HasPrefix(arg, "--token-store="):
			args.TokenStore = strings.TrimPrefix(arg, "--token-store=")
		default:
			remaining = append(remaining, arg)
		}
		if err != nil {
			return nil, args, err
		}
	}
	return remaining, args, nil
}

// =============================================================================
// DISPATCH
// =============================================================================

// handler runs one command against env.
type handler func(ctx context.Context, env *Env, args Args) error

var handlers = map[Command]handler{
	CmdLogin:    runLogin,
	CmdRegister: runRegister,
	CmdLogout:   runLogout,
	CmdWhoami:   runWhoami,
	CmdAsk:      runAsk,
	CmdChat:     runChat,
	CmdUpload:   runUpload,
	CmdFiles:    runFiles,
	CmdHistory:  runHistory,
	CmdStatus:   runStatus,
	CmdConfig:   runConfig,
}

// Execute runs a non-TUI command and returns its error, already displayed.
func Execute(ctx context.Context, env *Env, cmd Command, args Args) error {
	var err error
	switch cmd {
	case CmdHelp:
		PrintUsage(env.Stdout)
	case CmdVersion:
		err = runVersion(env, args)
	default:
		h, ok := handlers[cmd]
		if !ok {
			err = fmt.Errorf("command %s has no line-mode handler", cmd)
			break
		}
		err = h(ctx, env, args)
	}

	if err != nil {
		if args.JSON {
			_ = NewJSONErrorResponse(cmd.String(), err).Write(env.Stdout)
		} else {
			DisplayError(env.Stderr, err, false)
		}
		env.Logger.Debug("command failed", "command", cmd.String(), "exit_code", GetExitCode(err), "error", err)
	}
	return err
}

func runVersion(env *Env, args Args) error {
	data := VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
	if args.JSON {
		return NewJSONResponse("version", data).Write(env.Stdout)
	}
	fmt.Fprintf(env.Stdout, "pdfchat %s\n", data.Version)
	if !args.Quiet {
		fmt.Fprintf(env.Stdout, "  Commit:     %s\n", data.GitCommit)
		fmt.Fprintf(env.Stdout, "  Built:      %s\n", data.BuildDate)
		fmt.Fprintf(env.Stdout, "  Go version: %s\n", data.GoVersion)
		fmt.Fprintf(env.Stdout, "  Platform:   %s\n", data.Platform)
	}
	return nil
}
