package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/troopkit/rostersync/internal/htmlimport"
	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/types"
)

// fakeImporter accepts any file whose content does not start with "bad".
type fakeImporter struct {
	mu       sync.Mutex
	imported []string
}

func (f *fakeImporter) ImportFile(_ context.Context, unitID, path string) (*htmlimport.Outcome, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(string(data), "bad") {
		return nil, htmlimport.ErrNotRoster
	}
	f.mu.Lock()
	f.imported = append(f.imported, filepath.Base(path))
	f.mu.Unlock()
	return &htmlimport.Outcome{
		Session: &types.SyncSession{ID: "sess-" + filepath.Base(path), UnitID: unitID},
		Summary: &staging.Summary{Total: 1},
	}, nil
}

func (f *fakeImporter) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.imported...)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read %s: %v", dir, err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	return n
}

func TestNew(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		imp     Importer
		config  Config
		wantErr bool
	}{
		{name: "valid configuration", imp: &fakeImporter{}, config: Config{Dir: dir, UnitID: "u1"}},
		{name: "nil importer", imp: nil, config: Config{Dir: dir, UnitID: "u1"}, wantErr: true},
		{name: "empty dir", imp: &fakeImporter{}, config: Config{UnitID: "u1"}, wantErr: true},
		{name: "empty unit", imp: &fakeImporter{}, config: Config{Dir: dir}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.imp, tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if d == nil {
				return
			}
			defer d.Stop()

			if d.config.DebounceInterval != DefaultConfig().DebounceInterval {
				t.Errorf("DebounceInterval = %v, want default", d.config.DebounceInterval)
			}
			for _, sub := range []string{ProcessedDir, FailedDir} {
				if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
					t.Errorf("%s not created: %v", sub, err)
				}
			}
		})
	}
}

func TestScanInbox(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}
	var callbacks []string
	d, err := New(imp, Config{Dir: dir, UnitID: "u1", OnImported: func(path string, out *htmlimport.Outcome) {
		callbacks = append(callbacks, out.Session.ID)
	}})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer d.Stop()

	writeFile(t, dir, "b-roster.html", "<table></table>")
	writeFile(t, dir, "a-roster.HTM", "<table></table>")
	writeFile(t, dir, "broken.html", "bad export")
	writeFile(t, dir, "notes.txt", "ignored")

	if err := d.ScanInbox(); err != nil {
		t.Fatalf("ScanInbox() failed: %v", err)
	}

	got := imp.names()
	if len(got) != 2 || got[0] != "a-roster.HTM" || got[1] != "b-roster.html" {
		t.Errorf("imported = %v, want [a-roster.HTM b-roster.html]", got)
	}
	if len(callbacks) != 2 {
		t.Errorf("OnImported called %d times, want 2", len(callbacks))
	}
	if n := countFiles(t, filepath.Join(dir, ProcessedDir)); n != 2 {
		t.Errorf("processed/ has %d files, want 2", n)
	}
	if n := countFiles(t, filepath.Join(dir, FailedDir)); n != 1 {
		t.Errorf("failed/ has %d files, want 1", n)
	}
	// Only the non-export file stays behind.
	if n := countFiles(t, dir); n != 1 {
		t.Errorf("inbox has %d files, want 1", n)
	}
}

func TestReadyChangesDebounce(t *testing.T) {
	d, err := New(&fakeImporter{}, Config{Dir: t.TempDir(), UnitID: "u1", DebounceInterval: time.Second})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	defer d.Stop()

	now := time.Now()
	d.changeQueue["old.html"] = now.Add(-2 * time.Second)
	d.changeQueue["fresh.html"] = now.Add(-100 * time.Millisecond)

	ready := d.readyChanges(now)
	if len(ready) != 1 || ready[0] != "old.html" {
		t.Fatalf("readyChanges() = %v, want [old.html]", ready)
	}
	if _, ok := d.changeQueue["fresh.html"]; !ok {
		t.Error("fresh change should stay queued")
	}
	if _, ok := d.changeQueue["old.html"]; ok {
		t.Error("processed change should be dequeued")
	}
}

func TestStartWatchesInbox(t *testing.T) {
	dir := t.TempDir()
	imp := &fakeImporter{}
	imported := make(chan string, 4)
	d, err := New(imp, Config{
		Dir:              dir,
		UnitID:           "u1",
		DebounceInterval: 20 * time.Millisecond,
		OnImported:       func(path string, _ *htmlimport.Outcome) { imported <- filepath.Base(path) },
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	writeFile(t, dir, "pending.html", "<table></table>")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Start(ctx) }()

	waitFor := func(name string) {
		t.Helper()
		select {
		case got := <-imported:
			if got != name {
				t.Fatalf("imported %s, want %s", got, name)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for %s", name)
		}
	}
	waitFor("pending.html")

	writeFile(t, dir, "dropped.html", "<table></table>")
	waitFor("dropped.html")

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Fatalf("Start() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
