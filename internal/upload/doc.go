// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload sends PDFs to the server and manages the uploaded ones.
//
// Validation happens locally before anything is sent: the MIME type must be
// exactly application/pdf and the size at most 10 MiB. A rejected file
// yields a *ValidationError wrapping ErrNotPDF or ErrTooLarge. Failures
// after validation are reported as *Error.
//
//	src, err := upload.OpenFile("report.pdf") // type sniffed from content
//	f, err := handler.Upload(ctx, src)
//	fmt.Println(f.ID, upload.FormatSize(f.Size))
package upload
