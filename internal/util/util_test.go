// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestWriteFileAtomic_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deep", "tokens.json")

	if err := WriteFileAtomic(path, []byte("payload"), 0600); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(got) != "payload" {
		t.Errorf("content = %q, want %q", got, "payload")
	}
}

func TestWriteFileAtomic_OverwritesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	if err := WriteFileAtomic(path, []byte("first"), 0600); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0600); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, _ := os.ReadFile(path)
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomic_Permissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	if err := WriteFileAtomic(path, []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("perm = %o, want 600", perm)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if FileExists(path) {
		t.Error("FileExists should be false before creation")
	}
	os.WriteFile(path, []byte("a"), 0600)
	if !FileExists(path) {
		t.Error("FileExists should be true after creation")
	}
	if FileExists(dir) {
		t.Error("FileExists should be false for directories")
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 8, "hello..."},
		{"tiny limit", "hello", 2, "he"},
		{"zero", "hello", 0, ""},
		{"multibyte", "日本語テキスト", 5, "日本..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.in, tt.max); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestFitWidth(t *testing.T) {
	if got := FitWidth("abc", 10); got != "abc" {
		t.Errorf("FitWidth short = %q", got)
	}
	// Each CJK rune is two columns wide.
	if got := FitWidth("日本語テキスト", 7); got != "日本..." {
		t.Errorf("FitWidth wide = %q, want %q", got, "日本...")
	}
	if got := FitWidth("report-final.pdf", 8); got != "repor..." {
		t.Errorf("FitWidth cut = %q, want %q", got, "repor...")
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("ab", 4); got != "ab  " {
		t.Errorf("PadRight = %q", got)
	}
	if got := PadRight("abcdef", 4); got != "abcdef" {
		t.Errorf("PadRight long = %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("line one\r\nline   two\n"); got != "line one line two" {
		t.Errorf("SingleLine = %q", got)
	}
}

func TestNormalizeInput(t *testing.T) {
	// "e" + combining acute accent composes to a single code point.
	decomposed := "  Jose\u0301 "
	if got := NormalizeInput(decomposed); got != "Jos\u00e9" {
		t.Errorf("NormalizeInput = %q, want %q", got, "Jos\u00e9")
	}
}

// =============================================================================
// RELAY TESTS
// =============================================================================

func TestRelay_DeliversInPushOrder(t *testing.T) {
	const n = 1000
	got := make(chan int, n)
	r := NewRelay(func(v int) { got <- v })
	defer r.Close()

	var wg sync.WaitGroup
	var mu sync.Mutex
	next := 0
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				mu.Lock()
				if next == n {
					mu.Unlock()
					return
				}
				v := next
				next++
				r.Push(v)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	for want := 0; want < n; want++ {
		select {
		case v := <-got:
			if v != want {
				t.Fatalf("delivered %d, want %d", v, want)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for value %d", want)
		}
	}
}

func TestRelay_DropsAfterClose(t *testing.T) {
	got := make(chan string, 4)
	r := NewRelay(func(v string) { got <- v })
	r.Close()
	r.Close()
	r.Push("late")

	select {
	case v := <-got:
		t.Errorf("delivered %q after Close", v)
	case <-time.After(50 * time.Millisecond):
	}
}
