// Package watcher turns filesystem events in watched directories into sync
// jobs on the ingest queue.
package watcher

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ragbase/internal/metrics"
	"ragbase/internal/platform/rabbitmq"
)

const debounceWindow = 2 * time.Second

// Watcher debounces bursts of events per directory so one editor save or
// bulk copy produces a single sync job.
type Watcher struct {
	fsw       *fsnotify.Watcher
	publisher *rabbitmq.JobPublisher
	dirs      []string
	logger    *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func New(publisher *rabbitmq.JobPublisher, dirs []string, logger *zap.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fsw:       fsw,
		publisher: publisher,
		dirs:      dirs,
		logger:    logger,
		done:      make(chan struct{}),
	}, nil
}

// Start registers the watched directories and runs the event loop. Missing
// directories are logged and skipped.
func (w *Watcher) Start() error {
	watched := 0
	for _, dir := range w.dirs {
		if err := w.fsw.Add(dir); err != nil {
			w.logger.Warn("cannot watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
		w.logger.Info("watching directory", zap.String("dir", dir))
	}
	if watched == 0 {
		w.logger.Info("no directories watched")
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if dir := w.matchDir(event.Name); dir != "" {
				pending[dir] = struct{}{}
				if timer == nil {
					timer = time.NewTimer(debounceWindow)
				} else {
					timer.Reset(debounceWindow)
				}
				fire = timer.C
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		case <-fire:
			for dir := range pending {
				w.publishSync(ctx, dir)
				delete(pending, dir)
			}
			fire = nil
		}
	}
}

// matchDir maps an event path to the watched directory it belongs to.
func (w *Watcher) matchDir(path string) string {
	for _, dir := range w.dirs {
		if len(path) >= len(dir) && path[:len(dir)] == dir {
			return dir
		}
	}
	return ""
}

func (w *Watcher) publishSync(ctx context.Context, dir string) {
	job := rabbitmq.IngestJob{
		JobID:      uuid.NewString(),
		Kind:       rabbitmq.JobKindSync,
		Directory:  dir,
		EnqueuedAt: time.Now(),
	}
	if err := w.publisher.Publish(ctx, job); err != nil {
		w.logger.Error("publish sync job failed", zap.String("dir", dir), zap.Error(err))
		return
	}
	metrics.IngestJobsEnqueued.Inc()
	w.logger.Info("sync job enqueued", zap.String("dir", dir), zap.String("job_id", job.JobID))
}

// Close stops the event loop and the underlying fsnotify watcher.
func (w *Watcher) Close() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
	_ = w.fsw.Close()
}
