// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// files_cmd.go - upload and files commands.
//
// Examples:
//   pdfchat upload ~/papers/report.pdf
//   pdfchat files
//   pdfchat files show 6f1c...
//   pdfchat files download 6f1c... -o ~/Downloads
//   pdfchat files delete 6f1c... -y
//   pdfchat files stats --json

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
	"github.com/jeranaias/pdfchat-tui/internal/util"
)

func runUpload(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)
	path := p.Positional(0)
	if path == "" {
		return ErrMissingArgument("path", "pdfchat upload report.pdf")
	}

	src, err := upload.OpenFile(path)
	if err != nil {
		return err
	}
	// Validate before touching the session so bad files fail fast offline.
	if err := upload.Validate(src); err != nil {
		return err
	}
	if _, err := env.RequireSession(ctx); err != nil {
		return err
	}

	env.info(args, "Uploading %s (%s)...", src.Name, upload.FormatSize(src.Size))
	f, err := env.Uploads.Upload(ctx, src)
	if err != nil {
		return err
	}

	if args.JSON {
		return NewJSONResponse("upload", UploadData{
			FileID:   f.ID,
			Name:     f.Name,
			Size:     f.Size,
			SizeText: upload.FormatSize(f.Size),
			MimeType: f.MimeType,
		}).Write(env.Stdout)
	}
	if args.Quiet {
		fmt.Fprintln(env.Stdout, f.ID)
		return nil
	}
	fmt.Fprintln(env.Stdout, SuccessStyle.Render("Uploaded "+f.Name))
	fmt.Fprintln(env.Stdout, RenderField("File ID", f.ID))
	fmt.Fprintln(env.Stdout, RenderField("Size", upload.FormatSize(f.Size)))
	fmt.Fprintln(env.Stdout, DimStyle.Render(fmt.Sprintf("Ask about it: pdfchat ask \"...\" --file %s", f.ID)))
	return nil
}

var filesSubcommands = []string{"list", "show", "download", "delete", "stats"}

func runFiles(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "y", "yes")
	sub := p.Subcommand()
	if sub == "" {
		sub = "list"
	}

	if _, err := env.RequireSession(ctx); err != nil {
		return err
	}

	switch sub {
	case "list", "ls":
		return filesList(ctx, env, args)
	case "show", "info":
		return filesShow(ctx, env, args, p.Positional(1))
	case "download", "get":
		return filesDownload(ctx, env, args, p.Positional(1), p.FlagOrDefault("o", p.FlagOrDefault("out", ".")))
	case "delete", "rm":
		return filesDelete(ctx, env, args, p.Positional(1), p.BoolFlag("y", "yes"))
	case "stats":
		return filesStats(ctx, env, args)
	default:
		return ErrUnknownSubcommand("files", sub, filesSubcommands)
	}
}

func filesList(ctx context.Context, env *Env, args Args) error {
	files, err := env.Uploads.List(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("files", FilesData{Files: files, TotalCount: len(files)}).Write(env.Stdout)
	}
	if args.Quiet {
		for _, f := range files {
			fmt.Fprintln(env.Stdout, f.FileID)
		}
		return nil
	}
	printFileTable(env.Stdout, files)
	return nil
}

// printFileTable writes one row per file: id, name, size, age.
func printFileTable(w io.Writer, files []api.FileInfo) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No uploaded files.")
		return
	}
	for _, f := range files {
		fmt.Fprintf(w, "%s  %s  %s  %s\n",
			util.PadRight(f.FileID, 36),
			util.PadRight(util.FitWidth(f.OriginalFilename, 32), 32),
			util.PadRight(upload.FormatSize(f.FileSize), 10),
			humanize.Time(f.UploadTime.Time))
	}
}

func filesShow(ctx context.Context, env *Env, args Args, id string) error {
	if id == "" {
		return ErrMissingArgument("file id", "pdfchat files show <id>")
	}
	info, err := env.Uploads.Get(ctx, id)
	if err != nil {
		return notFound(err, "file", id)
	}
	if args.JSON {
		return NewJSONResponse("files show", info).Write(env.Stdout)
	}
	fmt.Fprintln(env.Stdout, TitleStyle.Render(info.OriginalFilename))
	fmt.Fprintln(env.Stdout, RenderField("File ID", info.FileID))
	fmt.Fprintln(env.Stdout, RenderField("Size", upload.FormatSize(info.FileSize)))
	fmt.Fprintln(env.Stdout, RenderField("Type", info.ContentType))
	fmt.Fprintln(env.Stdout, RenderField("Uploaded", info.UploadTime.Local().Format("2006-01-02 15:04")))
	return nil
}

func filesDownload(ctx context.Context, env *Env, args Args, id, dir string) error {
	if id == "" {
		return ErrMissingArgument("file id", "pdfchat files download <id> -o DIR")
	}
	path, n, err := env.Uploads.Download(ctx, id, dir)
	if err != nil {
		return notFound(err, "file", id)
	}
	if args.JSON {
		return NewJSONResponse("files download", DownloadData{FileID: id, Path: path, Bytes: n}).Write(env.Stdout)
	}
	if args.Quiet {
		fmt.Fprintln(env.Stdout, path)
		return nil
	}
	fmt.Fprintf(env.Stdout, "%s %s (%s)\n", SuccessStyle.Render("Saved"), path, upload.FormatSize(n))
	return nil
}

func filesDelete(ctx context.Context, env *Env, args Args, id string, yes bool) error {
	if id == "" {
		return ErrMissingArgument("file id", "pdfchat files delete <id> -y")
	}
	if !yes {
		ok, err := confirm(env, args, "delete file "+id)
		if err != nil || !ok {
			return err
		}
	}
	if err := env.Uploads.Delete(ctx, id); err != nil {
		return notFound(err, "file", id)
	}
	if args.JSON {
		return NewJSONResponse("files delete", map[string]string{"file_id": id}).Write(env.Stdout)
	}
	env.info(args, "Deleted %s", id)
	return nil
}

func filesStats(ctx context.Context, env *Env, args Args) error {
	stats, err := env.Uploads.Stats(ctx)
	if err != nil {
		return err
	}
	if args.JSON {
		return NewJSONResponse("files stats", stats).Write(env.Stdout)
	}
	fmt.Fprintln(env.Stdout, RenderField("Files", fmt.Sprint(stats.TotalFiles)))
	fmt.Fprintln(env.Stdout, RenderField("Total size", upload.FormatSize(stats.TotalSizeBytes)))
	if len(stats.RecentFiles) > 0 && !args.Quiet {
		fmt.Fprintln(env.Stdout, SectionStyle.Render("Recent"))
		for _, f := range stats.RecentFiles {
			fmt.Fprintf(env.Stdout, "  %s  %s\n", util.PadRight(f.Filename, 32), humanize.Time(f.UploadTime.Time))
		}
	}
	return nil
}

// confirm asks a yes/no question. Without a terminal, or in JSON mode, it
// refuses and tells the user to pass -y.
func confirm(env *Env, args Args, action string) (bool, error) {
	if args.JSON || !env.Interactive {
		return false, NewValidationError("confirmation", "", "refusing to "+action+" without -y")
	}
	answer, err := env.Prompter.Prompt(fmt.Sprintf("Are you sure you want to %s? [y/N]: ", action))
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	fmt.Fprintln(env.Stderr, "Cancelled.")
	return false, nil
}
