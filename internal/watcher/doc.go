// Package watcher reports changes to individual files, such as the corpus
// JSON file, and turns bursts of changes into a single reload.
//
// fsnotify watches the parent directory of every target so that atomic
// replaces (write to a temp file, rename over the target) are seen; when
// fsnotify is unavailable the watcher falls back to polling the targets'
// size and modification time.
//
// Usage:
//
//	w, err := watcher.NewCorpusWatcher(path, watcher.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	err = w.Run(ctx, func(ctx context.Context) error {
//	    return engine.LoadCorpus(ctx, path)
//	})
package watcher
