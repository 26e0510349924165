package feed

import (
	"context"
	"fmt"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
)

// ErrFeedUnavailable is returned, wrapped with its cause, whenever a feed cannot produce a reading
var ErrFeedUnavailable = errors.New("feed unavailable")

// Reader provides the most recent reading published for a signal
type Reader interface {
	LatestReading(ctx context.Context, signal entities.Signal) (entities.Reading, error)
}

// Unavailable wraps cause so that both ErrFeedUnavailable and cause match errors.Is
func Unavailable(signal entities.Signal, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrFeedUnavailable, signal, cause)
}
