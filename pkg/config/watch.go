package config

import (
	"github.com/fsnotify/fsnotify"

	"github.com/gridcube/gridcube/pkg/database"
)

// Watch reloads path and re-applies it to db whenever the file changes on
// disk. It runs until stop is closed or the watcher errors; callers should
// run it in its own goroutine. Re-application is additive only: Apply never
// removes anything from db, so entries deleted from the file stay in place;
// dimensions and cubes that already exist fail with DuplicateNameError and
// are left unchanged (new members of an existing dimension are not picked
// up); every rule in the file is registered again.
func Watch(path string, db *database.Database, stop <-chan struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return err
	}

	for {
		select {
		case <-stop:
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m, err := Load(path)
			if err != nil {
				log.Error(err, "reload failed, keeping previous configuration", "path", path)
				continue
			}
			if status := Apply(db, m); !status.OK() {
				log.Error(status, "reload applied with errors", "path", path)
			} else {
				log.V(1).Info("reloaded configuration", "path", path)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Error(err, "watcher error", "path", path)
		}
	}
}
