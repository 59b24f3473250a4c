// Package watcher notices changes to the corpus export file so the search
// engine can reload it without a restart.
//
// fsnotify watches the file's directory, which keeps working when editors
// or export jobs replace the file by rename. Where fsnotify cannot start
// (some network mounts and container volumes) the watcher polls the file's
// modification time and size instead. Bursts of writes are debounced into a
// single batch.
//
// Usage:
//
//	w, err := watcher.New("data/entries.json", watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	defer w.Stop()
//	go w.Run(ctx)
//
//	for batch := range w.Events() {
//	    reload(batch)
//	}
package watcher
