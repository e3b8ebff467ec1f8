// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the pdfchat command line: argument parsing, the
// line-mode commands and their exit codes.
//
// # Key Types
//
//   - Command: the subcommand to run, CmdTUI when no arguments are given
//   - Args: global flags plus the subcommand's raw arguments
//   - Env: config, logger, token store, API client and the session, upload
//     and history components a command works with
//   - JSONResponse: the envelope every --json command prints
//
// # Usage
//
//	cmd, args, err := cli.Parse(os.Args[1:])
//	if err != nil { ... }
//	env, err := cli.NewEnv(args)
//	if err != nil { ... }
//	defer env.Close()
//	err = cli.Execute(ctx, env, cmd, args)
//	os.Exit(cli.GetExitCode(err))
//
// Tests build an Env with Wire and replace its streams and Prompter.
package cli
