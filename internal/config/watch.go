package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Watch starts a filesystem watch on v's config file and invokes
// onChange with the freshly rebuilt configuration every time it is
// written, spec.md Section 11's fsnotify entry: "complements the
// SIGUSR2 notifier with a filesystem-triggered one" (internal/reload's
// notify_sigusr2.go is the process-signal half of reload; this is the
// file-write half). The returned io.Closer stops the watch.
func Watch(v *viper.Viper, log *zap.Logger, onChange func(*Built, error)) (*Watcher, error) {
	path := v.ConfigFileUsed()
	if path == "" {
		return nil, errors.New("no config file in use, nothing to watch")
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	if err := w.Add(path); err != nil {
		_ = w.Close()
		return nil, errors.Wrapf(err, "watch %s", path)
	}

	watcher := &Watcher{fsw: w, done: make(chan struct{})}
	go watcher.run(v, log, onChange)
	return watcher, nil
}

// Watcher owns the background goroutine started by Watch.
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

func (w *Watcher) run(v *viper.Viper, log *zap.Logger, onChange func(*Built, error)) {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			raw, err := Load(v)
			if err != nil {
				log.Warn("failed to reload config", zap.Error(err))
				onChange(nil, err)
				continue
			}
			built, err := Build(raw)
			if err != nil {
				log.Warn("failed to rebuild config", zap.Error(err))
			}
			onChange(built, err)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", zap.Error(err))
		}
	}
}

// Close stops the watch.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
	default:
		close(w.done)
	}
	return w.fsw.Close()
}
