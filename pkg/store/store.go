// Package store persists thresholds, satellite values and the crossing journal
// so a restarted coordinator resumes where it stopped.
package store

import (
	"context"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("not found")

type Store interface {
	LoadThresholds(ctx context.Context) (map[entities.Signal]int64, error)
	SaveThreshold(ctx context.Context, signal entities.Signal, value int64) error
	LoadSatellite(ctx context.Context, name string) (string, error)
	SaveSatellite(ctx context.Context, name string, value string) error
	Close() error
}
