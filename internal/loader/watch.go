package loader

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// DefaultDebounce coalesces bursts of file events into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Watch reloads all strategies when a strategy file or a manifest in the
// plugin directory changes. It blocks until ctx is done.
func (l *Loader) Watch(ctx context.Context, debounce time.Duration) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	dirs, files, pluginDir := l.watchTargets()
	if len(dirs) == 0 {
		<-ctx.Done()
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("loader: creating watcher: %w", err)
	}
	defer w.Close()
	for _, d := range dirs {
		if err = w.Add(d); err != nil {
			log.Warnf("loader: cannot watch %s: %v", d, err)
		}
	}
	if len(w.WatchList()) == 0 {
		return errors.New("loader: no watchable strategy locations")
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(debounce, func() {
			if ctx.Err() != nil {
				return
			}
			l.ReloadAll()
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	log.Infof("loader: watching %d strategy locations", len(w.WatchList()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, files, pluginDir) {
				continue
			}
			log.Debugf("loader: %s %s", ev.Op, ev.Name)
			schedule()
		case werr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warnf("loader: watcher error: %v", werr)
		}
	}
}

func relevant(ev fsnotify.Event, files map[string]struct{}, pluginDir string) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := absPath(ev.Name)
	if _, ok := files[name]; ok {
		return true
	}
	return pluginDir != "" && filepath.Dir(name) == pluginDir && Supported(name)
}
