package utils

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/sirupsen/logrus"
)

// ThresholdWatcher reapplies the thresholds section of a configuration file each time it changes
type ThresholdWatcher struct {
	path    string
	apply   func(entities.Thresholds) error
	log     *logrus.Entry
	watcher *fsnotify.Watcher
	// last holds the thresholds section as last read from the file
	last *entities.Thresholds
}

// NewThresholdWatcher watches the directory holding path, editors often replace files instead of writing them
func NewThresholdWatcher(path string, apply func(entities.Thresholds) error, log *logrus.Entry) (*ThresholdWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}
	tw := &ThresholdWatcher{path: abs, apply: apply, log: log, watcher: watcher}
	if thresholds, err := LoadThresholds(abs); err == nil {
		tw.last = &thresholds
	}
	return tw, nil
}

// Run blocks until ctx is done and closes the underlying watcher on return
func (tw *ThresholdWatcher) Run(ctx context.Context) error {
	defer tw.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-tw.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != tw.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			tw.reload()
		case err, ok := <-tw.watcher.Errors:
			if !ok {
				return nil
			}
			tw.log.Errorln(err)
		}
	}
}

func (tw *ThresholdWatcher) reload() {
	// truncation shows up as its own write event
	if info, err := os.Stat(tw.path); err == nil && info.Size() == 0 {
		return
	}
	thresholds, err := LoadThresholds(tw.path)
	if err != nil {
		tw.log.WithError(err).Warn("ignoring unreadable threshold file")
		return
	}
	if tw.last != nil && *tw.last == thresholds {
		tw.log.Debug("thresholds section unchanged, keeping active thresholds")
		return
	}
	if err := tw.apply(thresholds); err != nil {
		tw.log.WithError(err).Error("failed to apply thresholds from file")
		return
	}
	tw.last = &thresholds
	tw.log.WithFields(logrus.Fields{
		"temperature":    thresholds.Temperature,
		"lightIntensity": thresholds.LightIntensity,
		"securityAlert":  thresholds.SecurityAlert,
	}).Info("thresholds reloaded from file")
}
