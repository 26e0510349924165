package coordinator

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type checker interface {
	Check(ctx context.Context, signal entities.Signal) (CheckResult, error)
}

// Poller checks the three signals every interval
type Poller struct {
	checker  checker
	interval time.Duration
	log      *logrus.Entry
}

func NewPoller(c checker, interval time.Duration, log *logrus.Entry) *Poller {
	return &Poller{checker: c, interval: interval, log: log}
}

// Run polls once immediately and then on every tick until ctx is done
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	// failures are already logged per signal by Poll
	_ = p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = p.Poll(ctx)
		}
	}
}

// Poll checks every signal concurrently. A failing signal is logged and does
// not keep the others from being checked. The failures are returned joined.
func (p *Poller) Poll(ctx context.Context) error {
	signals := entities.Signals()
	errs := make([]error, len(signals))
	var wg sync.WaitGroup
	for i, signal := range signals {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := p.checker.Check(ctx, signal)
			if err != nil {
				p.log.WithError(err).WithField("signal", signal).Error("check failed")
				errs[i] = errors.Wrapf(err, "check %s", signal)
				return
			}
			p.log.WithFields(logrus.Fields{
				"signal":    signal,
				"reading":   result.Reading.Value,
				"threshold": result.Threshold,
				"crossed":   result.Crossed,
			}).Debug("check done")
		}()
	}
	wg.Wait()
	return stderrors.Join(errs...)
}
