package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Expirer closes stale team requests.
type Expirer interface {
	ExpireStale(ctx context.Context) (int64, error)
}

// RunExpirySweeper calls ExpireStale every interval until ctx is cancelled.
func RunExpirySweeper(ctx context.Context, expirer Expirer, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := expirer.ExpireStale(ctx)
			if err != nil {
				log.WithError(err).Warn("expire stale team requests")
				continue
			}
			if n > 0 {
				log.WithField("expired", n).Info("expired stale team requests")
			}
		}
	}
}
