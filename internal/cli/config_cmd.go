// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - Show and edit configuration.
//
// Examples:
//   pdfchat config show
//   pdfchat config get api.base_url
//   pdfchat config set api.base_url https://pdfchat.example.com/api/v1
//   pdfchat config set auth.token_store sqlite
//   pdfchat config keys

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/pdfchat-tui/internal/config"
)

var configSubcommands = []string{"show", "path", "get", "set", "keys"}

func runConfig(_ context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)
	sub := p.Subcommand()
	if sub == "" {
		sub = "show"
	}

	switch sub {
	case "show":
		if args.JSON {
			return NewJSONResponse("config show", ConfigData{Path: env.ConfigPath, Config: env.Config}).Write(env.Stdout)
		}
		fmt.Fprintln(env.Stdout, DimStyle.Render("# "+env.ConfigPath))
		return toml.NewEncoder(env.Stdout).Encode(env.Config)

	case "path":
		if args.JSON {
			return NewJSONResponse("config path", map[string]string{"path": env.ConfigPath}).Write(env.Stdout)
		}
		fmt.Fprintln(env.Stdout, env.ConfigPath)
		return nil

	case "keys":
		for _, k := range config.GetAllKeys() {
			fmt.Fprintln(env.Stdout, k)
		}
		return nil

	case "get":
		key := p.Positional(1)
		if key == "" {
			return ErrMissingArgument("key", "pdfchat config get api.base_url")
		}
		val, err := env.Config.Get(key)
		if err != nil {
			return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "pdfchat config keys"}
		}
		if args.JSON {
			return NewJSONResponse("config get", map[string]interface{}{"key": key, "value": val}).Write(env.Stdout)
		}
		fmt.Fprintln(env.Stdout, val)
		return nil

	case "set":
		key, value := p.Positional(1), JoinPositionalArgs(p, 2)
		if key == "" || p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "pdfchat config set ui.theme dark")
		}
		if err := setConfigValue(env.ConfigPath, key, value); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config set", map[string]string{"key": key, "value": value}).Write(env.Stdout)
		}
		env.info(args, "Set %s = %s", key, value)
		return nil

	default:
		return ErrUnknownSubcommand("config", sub, configSubcommands)
	}
}

// setConfigValue changes one key in the file at path. Only the file's own
// values are rewritten; environment and flag overrides are not persisted.
func setConfigValue(path, key, value string) error {
	cfg := config.Default()
	if _, err := os.Stat(path); err == nil {
		load := config.LoadTOML
		if strings.HasSuffix(path, ".json") {
			load = config.LoadJSON
		}
		if err := load(cfg, path); err != nil {
			return err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := cfg.Set(key, value); err != nil {
		return &ValidationError{Field: "key", Value: key, Reason: err.Error(), Example: "pdfchat config keys"}
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	if strings.HasSuffix(path, ".json") {
		return config.SaveJSON(cfg, path)
	}
	return config.SaveTOML(cfg, path)
}
