package clients

import (
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the registry whenever the directory changes. Bursts of
// events are collapsed into one reload.
func (r *Registry) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	err = watcher.Add(r.dir)
	if err != nil {
		watcher.Close()
		return err
	}

	done := make(chan struct{})
	r.watcher = watcher
	r.done = done

	reload := make(chan struct{}, 1)
	go r.scheduleReload(done, reload)
	go r.handleWatcher(watcher, done, reload)
	return nil
}

// Close stops the watcher, if running.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	close(r.done)
	err := r.watcher.Close()
	r.watcher = nil
	return err
}

func (r *Registry) handleWatcher(
	watcher *fsnotify.Watcher,
	done <-chan struct{},
	reload chan<- struct{},
) {
	for {
		select {
		case <-done:
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Warn("clients: watcher error")
		}
	}
}

func (r *Registry) scheduleReload(
	done <-chan struct{},
	reload <-chan struct{},
) {
	var timer *time.Timer = nil
	var c <-chan time.Time = nil
	for {
		select {
		case <-done:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-reload:
			if timer != nil {
				timer.Reset(r.debounce)
			} else {
				timer = time.NewTimer(r.debounce)
				c = timer.C
			}

		case <-c:
			c = nil
			timer = nil
			if err := r.Reload(); err != nil {
				r.log.WithError(err).Error("clients: reload failed")
			}
		}
	}
}
