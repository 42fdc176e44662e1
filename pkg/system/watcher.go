package system

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// stateWatcher signals on changed whenever one of the named files in a
// directory is written. When the directory cannot be watched it never
// signals and callers fall back to polling.
type stateWatcher struct {
	fsw     *fsnotify.Watcher
	names   map[string]bool
	changed chan struct{}
	log     logrus.FieldLogger
}

func watchStateDir(dir string, log logrus.FieldLogger, names ...string) *stateWatcher {
	sw := &stateWatcher{
		names:   map[string]bool{},
		changed: make(chan struct{}, 1),
		log:     log,
	}
	for _, n := range names {
		sw.names[n] = true
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("Cannot create file watcher, polling only")
		return sw
	}
	if err := fsw.Add(dir); err != nil {
		log.WithError(err).Debugf("Not watching %s", dir)
		fsw.Close()
		return sw
	}
	sw.fsw = fsw
	go sw.loop()
	return sw
}

func (sw *stateWatcher) loop() {
	for {
		select {
		case event, ok := <-sw.fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if len(sw.names) > 0 && !sw.names[filepath.Base(event.Name)] {
				continue
			}
			select {
			case sw.changed <- struct{}{}:
			default:
			}
		case err, ok := <-sw.fsw.Errors:
			if !ok {
				return
			}
			sw.log.WithError(err).Warn("watcher error")
		}
	}
}

func (sw *stateWatcher) Close() {
	if sw.fsw != nil {
		sw.fsw.Close()
	}
}
