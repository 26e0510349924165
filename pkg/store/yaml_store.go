package store

import (
	"context"
	"os"
	"sync"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type snapshot struct {
	Thresholds map[entities.Signal]int64 `yaml:"thresholds"`
	Satellites map[string]string         `yaml:"satellites"`
}

// YAML keeps coordinator state in a yaml snapshot rewritten on every save
type YAML struct {
	mu             sync.Mutex
	path           string
	state          snapshot
	fileManagement filesystemManagement
}

func NewYAML(path string) (*YAML, error) {
	return newYAML(path, new(fileManagement))
}

func newYAML(path string, fm filesystemManagement) (*YAML, error) {
	s := &YAML{
		path:           path,
		fileManagement: fm,
		state: snapshot{
			Thresholds: make(map[entities.Signal]int64),
			Satellites: make(map[string]string),
		},
	}
	data, err := fm.readSnapshotFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read snapshot %s", path)
	}
	if err := yaml.Unmarshal(data, &s.state); err != nil {
		return nil, errors.Wrapf(err, "decode snapshot %s", path)
	}
	if s.state.Thresholds == nil {
		s.state.Thresholds = make(map[entities.Signal]int64)
	}
	if s.state.Satellites == nil {
		s.state.Satellites = make(map[string]string)
	}
	return s, nil
}

func (s *YAML) LoadThresholds(_ context.Context) (map[entities.Signal]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[entities.Signal]int64, len(s.state.Thresholds))
	for k, v := range s.state.Thresholds {
		out[k] = v
	}
	return out, nil
}

func (s *YAML) SaveThreshold(_ context.Context, signal entities.Signal, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.state.Thresholds[signal]
	s.state.Thresholds[signal] = value
	if err := s.writeLocked(); err != nil {
		if existed {
			s.state.Thresholds[signal] = previous
		} else {
			delete(s.state.Thresholds, signal)
		}
		return err
	}
	return nil
}

func (s *YAML) LoadSatellite(_ context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.state.Satellites[name]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (s *YAML) SaveSatellite(_ context.Context, name string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, existed := s.state.Satellites[name]
	s.state.Satellites[name] = value
	if err := s.writeLocked(); err != nil {
		if existed {
			s.state.Satellites[name] = previous
		} else {
			delete(s.state.Satellites, name)
		}
		return err
	}
	return nil
}

func (s *YAML) writeLocked() error {
	data, err := yaml.Marshal(&s.state)
	if err != nil {
		return err
	}
	return errors.Wrap(s.fileManagement.writeSnapshotFile(s.path, data), "write snapshot")
}

func (s *YAML) Close() error {
	return nil
}
