// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package uploads

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/pdfchat-tui/internal/api"
	"github.com/jeranaias/pdfchat-tui/internal/apitest"
	"github.com/jeranaias/pdfchat-tui/internal/tokenstore"
	"github.com/jeranaias/pdfchat-tui/internal/ui/components"
	"github.com/jeranaias/pdfchat-tui/internal/ui/styles"
	"github.com/jeranaias/pdfchat-tui/internal/upload"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

type attachment struct{ id string }

func (a *attachment) AttachFile(id string)  { a.id = id }
func (a *attachment) AttachedFile() string { return a.id }

type fixture struct {
	srv     *apitest.Server
	handler *upload.Handler
	attach  *attachment
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := apitest.New(t)
	srv.AddUser("bob", "hunter22")
	access, _ := srv.IssueTokens("bob")
	tokens := tokenstore.NewMemory()
	require.NoError(t, tokens.Set(tokenstore.AccessTokenKey, access))

	client := api.NewClient(srv.APIURL()).WithTokenStore(tokens).WithTimeout(5 * time.Second)
	return &fixture{
		srv:     srv,
		handler: upload.NewHandler(client),
		attach:  &attachment{},
		dir:     t.TempDir(),
	}
}

func (f *fixture) model() Model {
	m := New(context.Background(), styles.NewTheme(styles.ThemeDark), f.handler, f.attach)
	m.SetSize(100, 30)
	return m
}

func (f *fixture) writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(f.dir, name)
	require.NoError(t, os.WriteFile(p, data, 0o600))
	return p
}

// run executes cmd, expanding batches, and returns every message produced.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// feed runs cmd and delivers its domain messages back to m.
func feed(m Model, cmd tea.Cmd) (Model, []tea.Msg) {
	var seen []tea.Msg
	for _, msg := range run(cmd) {
		seen = append(seen, msg)
		switch msg.(type) {
		case upload.FilesMsg, upload.UploadedMsg, upload.DeletedMsg:
			var next tea.Cmd
			m, next = m.Update(msg)
			var more []tea.Msg
			m, more = feed(m, next)
			seen = append(seen, more...)
		}
	}
	return m, seen
}

func keys(m Model, s string) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func enter(m Model) (Model, tea.Cmd) {
	return m.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestModel_EmptyList(t *testing.T) {
	f := newFixture(t)
	m := f.model()
	m, _ = feed(m, m.Init())
	assert.Empty(t, m.Files())
	assert.Contains(t, m.View(), "No files uploaded yet.")
	assert.Contains(t, m.View(), "How to use")
}

func TestModel_UploadAttachesAndRefreshes(t *testing.T) {
	f := newFixture(t)
	p := f.writeFile(t, "report.pdf", samplePDF)
	m := f.model()

	m, _ = keys(m, "u")
	require.True(t, m.Editing())
	m, _ = keys(m, p)
	m, cmd := enter(m)
	assert.False(t, m.Editing())
	assert.Contains(t, m.View(), "Uploading your PDF...")

	m, seen := feed(m, cmd)

	var attached *AttachedMsg
	var toast *components.NotifyMsg
	for _, msg := range seen {
		switch v := msg.(type) {
		case AttachedMsg:
			attached = &v
		case components.NotifyMsg:
			toast = &v
		}
	}
	require.NotNil(t, attached)
	assert.Equal(t, "report.pdf", attached.Name)
	assert.Equal(t, attached.ID, f.attach.id)
	require.NotNil(t, toast)
	assert.Equal(t, components.ToastSuccess, toast.Kind)

	require.Len(t, m.Files(), 1)
	assert.Equal(t, 1, f.handler.Library().Len())
	view := m.View()
	assert.Contains(t, view, "report.pdf")
	assert.Contains(t, view, "●")
}

func TestModel_UploadRejectsNonPDF(t *testing.T) {
	f := newFixture(t)
	p := f.writeFile(t, "notes.txt", []byte("just some text"))
	m := f.model()

	m, _ = keys(m, "u")
	m, _ = keys(m, p)
	m, cmd := enter(m)
	m, seen := feed(m, cmd)

	require.NotEmpty(t, seen)
	assert.Contains(t, m.View(), upload.MsgNotPDF)
	assert.Empty(t, f.attach.id)
	assert.Zero(t, f.srv.Hits("POST /uploads/pdf"))
}

func TestModel_EscCancelsPathEntry(t *testing.T) {
	f := newFixture(t)
	m := f.model()
	m, _ = keys(m, "u")
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.Editing())
}

func TestModel_AttachSelected(t *testing.T) {
	f := newFixture(t)
	_, err := f.handler.Upload(context.Background(), upload.BytesSource("a.pdf", upload.PDFMimeType, samplePDF))
	require.NoError(t, err)
	m := f.model()
	m, _ = feed(m, m.Refresh())
	require.Len(t, m.Files(), 1)

	m, cmd := enter(m)
	require.NotNil(t, cmd)
	msg, ok := cmd().(AttachedMsg)
	require.True(t, ok)
	assert.Equal(t, m.Files()[0].FileID, msg.ID)
	assert.Equal(t, msg.ID, f.attach.id)
}

func TestModel_DeleteNeedsConfirmation(t *testing.T) {
	f := newFixture(t)
	uf, err := f.handler.Upload(context.Background(), upload.BytesSource("gone.pdf", upload.PDFMimeType, samplePDF))
	require.NoError(t, err)
	f.attach.AttachFile(uf.ID)

	m := f.model()
	m, _ = feed(m, m.Refresh())
	require.Len(t, m.Files(), 1)

	m, _ = keys(m, "d")
	assert.Contains(t, m.View(), "Delete gone.pdf? (y/n)")
	m, cmd := keys(m, "n")
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "(y/n)")

	m, _ = keys(m, "d")
	m, cmd = keys(m, "y")
	require.NotNil(t, cmd)
	m, _ = feed(m, cmd)

	assert.Empty(t, m.Files())
	assert.Empty(t, f.attach.id, "deleting the attached file detaches it")
	assert.Equal(t, 1, f.srv.Hits("DELETE /uploads/pdf/{fileID}"))
}

func TestModel_ListFailure(t *testing.T) {
	f := newFixture(t)
	f.srv.FailNext("GET /uploads/pdfs", 500, "storage offline")
	m := f.model()
	m, _ = feed(m, m.Init())
	assert.Contains(t, m.View(), "storage offline")
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "docs/a.pdf"), expandHome("~/docs/a.pdf"))
	assert.Equal(t, "/tmp/a.pdf", expandHome("/tmp/a.pdf"))
}
