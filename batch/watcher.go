package batch

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const queueDepth = 100

// Watcher keeps a directory under observation and feeds newly created
// WAV files to a fixed pool of transcription workers.
type Watcher struct {
	processor *Processor
	watcher   *fsnotify.Watcher
	queue     chan string
	workers   sync.WaitGroup
	numWorker int
}

// NewWatcher creates a watcher over inputDir with the given worker count.
func NewWatcher(processor *Processor, inputDir string, workers int) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(inputDir); err != nil {
		fsw.Close()
		return nil, err
	}

	if workers <= 0 {
		workers = 2
	}
	return &Watcher{
		processor: processor,
		watcher:   fsw,
		queue:     make(chan string, queueDepth),
		numWorker: workers,
	}, nil
}

// Run blocks until the context is cancelled, transcribing WAV files as
// they appear.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	for i := 0; i < w.numWorker; i++ {
		w.workers.Add(1)
		go w.worker(ctx)
	}

	slog.Info("Watching for new audio files", "workers", w.numWorker)

	for {
		select {
		case <-ctx.Done():
			close(w.queue)
			w.workers.Wait()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				close(w.queue)
				w.workers.Wait()
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				continue
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) {
		return
	}
	if strings.HasSuffix(event.Name, ".tmp") || !strings.EqualFold(filepath.Ext(event.Name), ".wav") {
		return
	}

	select {
	case w.queue <- event.Name:
		slog.Info("Queued new audio file", "file", event.Name)
	default:
		slog.Warn("Processing queue full, dropping file", "file", event.Name)
	}
}

func (w *Watcher) worker(ctx context.Context) {
	slog.Debug("Batch worker starting")
	defer func() {
		slog.Debug("Batch worker shutting down")
		w.workers.Done()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case path, ok := <-w.queue:
			if !ok {
				return
			}
			if _, err := w.processor.ProcessFile(ctx, path); err != nil {
				slog.Error("Failed to process audio file", "error", err, "file", path)
			}
		}
	}
}
