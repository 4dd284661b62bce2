// Package daemon watches an inbox directory for roster HTML exports and
// stages each one as it arrives.
//
// The daemon:
//  1. Imports any exports already sitting in the inbox
//  2. Watches the inbox for new or rewritten .html/.htm files
//  3. Waits for a file to go quiet before importing it
//  4. Moves imported files to processed/ and rejected ones to failed/
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/troopkit/rostersync/internal/htmlimport"
)

// Subdirectories of the inbox that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Importer stages one export file. *htmlimport.Importer satisfies it.
type Importer interface {
	ImportFile(ctx context.Context, unitID, path string) (*htmlimport.Outcome, error)
}

// Config holds configuration for the daemon.
type Config struct {
	// Dir is the inbox directory.
	Dir string

	// UnitID receives every import.
	UnitID string

	// DebounceInterval is how long a file must be left alone before it is
	// imported. Browsers save exports in several writes.
	DebounceInterval time.Duration

	// OnImported is called after each successful import.
	OnImported func(path string, out *htmlimport.Outcome)

	Logger *zap.Logger
}

// DefaultConfig returns defaults for everything but Dir and UnitID.
func DefaultConfig() Config {
	return Config{DebounceInterval: 500 * time.Millisecond}
}

// Daemon imports roster exports dropped into its inbox.
type Daemon struct {
	importer Importer
	config   Config
	logger   *zap.Logger

	watcher       *fsnotify.Watcher
	changeQueue   map[string]time.Time // path -> last event
	changeQueueMu sync.Mutex

	// importMu serializes imports; the store has a single writer.
	importMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon. Use Start to begin watching.
func New(imp Importer, config Config) (*Daemon, error) {
	if imp == nil {
		return nil, errors.New("importer cannot be nil")
	}
	if config.Dir == "" {
		return nil, errors.New("inbox directory cannot be empty")
	}
	if config.UnitID == "" {
		return nil, errors.New("unit cannot be empty")
	}
	if config.DebounceInterval <= 0 {
		config.DebounceInterval = DefaultConfig().DebounceInterval
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, dir := range []string{config.Dir, filepath.Join(config.Dir, ProcessedDir), filepath.Join(config.Dir, FailedDir)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		importer:    imp,
		config:      config,
		logger:      logger.With(zap.String("inbox", config.Dir)),
		watcher:     watcher,
		changeQueue: make(map[string]time.Time),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Start imports pending files and then watches the inbox. It blocks until
// ctx is cancelled or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.logger.Info("starting inbox watcher")

	if err := d.watcher.Add(d.config.Dir); err != nil {
		return fmt.Errorf("failed to watch inbox: %w", err)
	}
	if err := d.ScanInbox(); err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processChangeQueue()

	select {
	case <-ctx.Done():
		d.logger.Info("shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop shuts the daemon down and waits for an in-flight import to finish.
func (d *Daemon) Stop() error {
	d.cancel()
	if err := d.watcher.Close(); err != nil {
		d.logger.Warn("error closing watcher", zap.Error(err))
	}
	d.wg.Wait()
	d.logger.Info("inbox watcher stopped")
	return nil
}

// ScanInbox imports every export already in the inbox, oldest name first.
func (d *Daemon) ScanInbox() error {
	entries, err := os.ReadDir(d.config.Dir)
	if err != nil {
		return err
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isExport(e.Name()) {
			paths = append(paths, filepath.Join(d.config.Dir, e.Name()))
		}
	}
	sort.Strings(paths)
	for _, p := range paths {
		d.process(p)
	}
	return nil
}

func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if filepath.Dir(event.Name) != filepath.Clean(d.config.Dir) || !isExport(event.Name) {
				continue
			}
			d.logger.Debug("file event", zap.String("op", event.Op.String()), zap.String("path", event.Name))
			d.queueChange(event.Name)

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (d *Daemon) queueChange(path string) {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	d.changeQueue[path] = time.Now()
}

func (d *Daemon) processChangeQueue() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			for _, p := range d.readyChanges(time.Now()) {
				d.process(p)
			}
		}
	}
}

// readyChanges removes and returns queued paths that have been quiet for a
// full debounce interval.
func (d *Daemon) readyChanges(now time.Time) []string {
	d.changeQueueMu.Lock()
	defer d.changeQueueMu.Unlock()

	var ready []string
	for path, queuedAt := range d.changeQueue {
		if now.Sub(queuedAt) < d.config.DebounceInterval {
			continue
		}
		ready = append(ready, path)
		delete(d.changeQueue, path)
	}
	sort.Strings(ready)
	return ready
}

func (d *Daemon) process(path string) {
	d.importMu.Lock()
	defer d.importMu.Unlock()

	if _, err := os.Stat(path); err != nil {
		// Already moved, or removed before it settled.
		return
	}

	log := d.logger.With(zap.String("file", filepath.Base(path)))
	out, err := d.importer.ImportFile(d.ctx, d.config.UnitID, path)
	if err != nil {
		if d.ctx.Err() != nil {
			return
		}
		log.Warn("import failed", zap.Error(err))
		d.move(path, FailedDir, log)
		return
	}

	log.Info("export imported",
		zap.String("session_id", out.Session.ID),
		zap.Int("staged", out.Summary.Total),
	)
	d.move(path, ProcessedDir, log)
	if d.config.OnImported != nil {
		d.config.OnImported(path, out)
	}
}

// move renames path into sub, prefixing a timestamp so repeated exports of
// the same name do not collide.
func (d *Daemon) move(path, sub string, log *zap.Logger) {
	dst := filepath.Join(d.config.Dir, sub, time.Now().UTC().Format("20060102T150405.000")+"-"+filepath.Base(path))
	if err := os.Rename(path, dst); err != nil {
		log.Error("failed to move file", zap.String("dest", dst), zap.Error(err))
	}
}

func isExport(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm":
		return true
	}
	return false
}
