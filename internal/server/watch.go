package server

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 500 * time.Millisecond

// Reload rebuilds the runtime from path and swaps it in. On any error the
// current runtime keeps serving.
func (s *Server) Reload(path string) error {
	fc, err := LoadConfig(path)
	if err != nil {
		return err
	}

	if cur := s.current.Load(); cur != nil && cur.Config.Listen != fc.Listen {
		s.logger.Warn("listen address changes need a restart",
			zap.String("current", cur.Config.Listen),
			zap.String("configured", fc.Listen),
		)
	}

	rt, err := Build(fc, s.logger.Named("engine"))
	if err != nil {
		return err
	}
	s.Swap(rt)
	s.logger.Info("configuration reloaded", zap.String("path", path))
	return nil
}

// Watch reloads path whenever it changes until ctx is done. The parent
// directory is watched so editors that replace the file are seen. Bursts of
// events within reloadDebounce collapse into one reload.
func (s *Server) Watch(ctx context.Context, path string) error {
	return watchFile(ctx, path, reloadDebounce, func() {
		if err := s.Reload(path); err != nil {
			s.logger.Error("configuration reload failed", zap.Error(err))
		}
	}, s.logger)
}

func watchFile(ctx context.Context, path string, debounce time.Duration, callback func(), logger *zap.Logger) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return err
	}

	reload := make(chan struct{}, 1)
	go scheduleReload(ctx, reload, debounce, callback)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
					select {
					case reload <- struct{}{}:
					default:
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}

func scheduleReload(ctx context.Context, reload <-chan struct{}, debounce time.Duration, callback func()) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-reload:
			if timer != nil {
				timer.Reset(debounce)
			} else {
				timer = time.NewTimer(debounce)
				fire = timer.C
			}
		case <-fire:
			fire = nil
			timer = nil
			callback()
		}
	}
}
