package settings

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"cycleagent/internal/logger"
)

// FileWatcher monitors a single file and invokes a callback when it is written or recreated.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onChange func()

	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewFileWatcher creates a watcher that calls onChange when path is modified.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &FileWatcher{
		path:     path,
		watcher:  w,
		onChange: onChange,
		stopChan: make(chan struct{}),
	}, nil
}

// NewSettingsWatcher creates a watcher that parses the settings file on change
// and hands the result to callback. Parse failures are logged and skipped.
func NewSettingsWatcher(path string, callback func(*Settings)) (*FileWatcher, error) {
	return NewFileWatcher(path, func() {
		s, err := Load(path)
		if err != nil {
			log := logger.WithComponent("settings-watcher")
			log.Error().Err(err).Msg("Failed to reload settings")
			return
		}
		if callback != nil {
			callback(s)
		}
	})
}

// Start begins watching. The parent directory is watched so that atomic
// rename-based saves are seen.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}

	if err := fw.watcher.Add(filepath.Dir(fw.path)); err != nil {
		return err
	}
	fw.running = true

	log := logger.WithComponent("file-watcher")
	log.Info().Str("path", fw.path).Msg("Started watching file")

	fw.wg.Add(1)
	go fw.watch()
	return nil
}

// Stop stops watching and waits for the event goroutine to exit.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	if !fw.running {
		fw.mu.Unlock()
		return fw.watcher.Close()
	}
	fw.running = false
	fw.mu.Unlock()

	close(fw.stopChan)
	err := fw.watcher.Close()
	fw.wg.Wait()
	return err
}

// IsRunning reports whether the watcher is running.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) watch() {
	defer fw.wg.Done()

	log := logger.WithComponent("file-watcher")
	filename := filepath.Base(fw.path)

	for {
		select {
		case <-fw.stopChan:
			log.Info().Str("path", fw.path).Msg("File watcher stopped")
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != filename {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			log.Info().
				Str("path", fw.path).
				Str("event", event.Op.String()).
				Msg("File changed, reloading")
			if fw.onChange != nil {
				fw.onChange()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", fw.path).Msg("File watcher error")
		}
	}
}
