// Package config provides configuration management for leaguemirror.
package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/tatnall-legacy/leaguemirror/pkg/log"
)

// ConfigChangeCallback is called when the configuration file changes.
// It receives the old and new configurations.
type ConfigChangeCallback func(oldConfig, newConfig *Config)

// ConfigWatcher watches a configuration file for changes and reloads it.
type ConfigWatcher struct {
	mu              sync.RWMutex
	config          *Config
	configPath      string
	viper           *viper.Viper
	callbacks       []ConfigChangeCallback
	stopChan        chan struct{}
	reloadInProcess bool
}

// NewConfigWatcher creates a new configuration watcher.
// It loads the initial configuration and sets up file watching.
func NewConfigWatcher(configPath string) (*ConfigWatcher, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config with viper: %w", err)
	}

	watcher := &ConfigWatcher{
		config:     config,
		configPath: configPath,
		viper:      v,
		callbacks:  make([]ConfigChangeCallback, 0),
		stopChan:   make(chan struct{}),
	}

	log.WithField("config_path", configPath).Info("config watcher initialized")

	return watcher, nil
}

// GetConfig returns the current configuration (thread-safe).
func (cw *ConfigWatcher) GetConfig() *Config {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.config
}

// OnConfigChange registers a callback to be invoked when the config changes.
// Callbacks are executed in the order they were registered.
func (cw *ConfigWatcher) OnConfigChange(callback ConfigChangeCallback) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.callbacks = append(cw.callbacks, callback)
}

// StartWatching begins monitoring the configuration file for changes.
// When a change is detected, the config is reloaded and callbacks are invoked.
// This method blocks, so it should typically be run in a goroutine.
func (cw *ConfigWatcher) StartWatching() {
	cw.viper.OnConfigChange(func(e fsnotify.Event) {
		cw.handleConfigChange(e)
	})

	cw.viper.WatchConfig()

	log.WithField("config_path", cw.configPath).Info("started watching config file for changes")

	<-cw.stopChan
}

// StopWatching stops monitoring the configuration file.
func (cw *ConfigWatcher) StopWatching() {
	close(cw.stopChan)
	log.Info("stopped watching config file")
}

func (cw *ConfigWatcher) handleConfigChange(e fsnotify.Event) {
	cw.mu.Lock()
	if cw.reloadInProcess {
		cw.mu.Unlock()
		return
	}
	cw.reloadInProcess = true
	cw.mu.Unlock()

	defer func() {
		cw.mu.Lock()
		cw.reloadInProcess = false
		cw.mu.Unlock()
	}()

	log.WithFields(map[string]interface{}{
		"event":       e.Op.String(),
		"config_path": e.Name,
	}).Info("config file change detected")

	newConfig, err := LoadConfig(cw.configPath)
	if err != nil {
		log.WithError(err).WithField("config_path", cw.configPath).Error("failed to reload config")
		return
	}

	cw.mu.Lock()
	oldConfig := cw.config
	cw.config = newConfig
	callbacks := cw.callbacks
	cw.mu.Unlock()

	log.WithFields(map[string]interface{}{
		"config_path":  cw.configPath,
		"espn_league":  newConfig.ESPN.LeagueID,
		"start_season": newConfig.ESPN.StartSeason,
		"end_season":   newConfig.ESPN.EndSeason,
	}).Info("config reloaded successfully")

	for _, callback := range callbacks {
		go func(cb ConfigChangeCallback) {
			defer func() {
				if r := recover(); r != nil {
					log.WithField("panic", r).Error("config change callback panicked")
				}
			}()
			cb(oldConfig, newConfig)
		}(callback)
	}
}

// FileWatcher watches a single file (typically the credential file) for
// writes and renames. The parent directory is watched so editors that
// replace the file atomically are still observed.
type FileWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	events   chan fsnotify.Event
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for the given file path.
// The parent directory must exist; the file itself may not yet.
func NewFileWatcher(path string) (*FileWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if err := w.Add(filepath.Dir(abs)); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch directory %s: %w", filepath.Dir(abs), err)
	}

	return &FileWatcher{
		path:     abs,
		watcher:  w,
		events:   make(chan fsnotify.Event, 1),
		stopChan: make(chan struct{}),
	}, nil
}

// Events returns the channel on which changes to the watched file are delivered.
func (fw *FileWatcher) Events() <-chan fsnotify.Event {
	return fw.events
}

// Start begins forwarding events for the watched file.
// This method blocks; run it in a goroutine.
func (fw *FileWatcher) Start() {
	log.WithField("path", fw.path).Info("started watching file for changes")

	for {
		select {
		case e, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(e.Name) != fw.path {
				continue
			}
			if !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Create) && !e.Op.Has(fsnotify.Rename) {
				continue
			}
			select {
			case fw.events <- e:
			default:
				// A pending event already covers this change.
			}
		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).WithField("path", fw.path).Warn("file watcher error")
		case <-fw.stopChan:
			return
		}
	}
}

// Stop stops the watcher and releases its resources.
func (fw *FileWatcher) Stop() {
	fw.stopOnce.Do(func() {
		close(fw.stopChan)
		fw.watcher.Close()
	})
}
