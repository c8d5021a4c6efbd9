package file

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const sweepTimeout = 5 * time.Minute

// NewSweepScheduler returns a stopped cron scheduler that runs SweepPending on
// schedule. Overlapping runs are skipped.
func NewSweepScheduler(schedule string, service *Service, olderThan time.Duration, log *zap.Logger) (*cron.Cron, error) {
	clog := cronLogger{log: log.Sugar()}
	c := cron.New(
		cron.WithParser(cron.NewParser(
			cron.SecondOptional|cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor,
		)),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := service.SweepPending(ctx, olderThan); err != nil {
			log.Error("sweep pending uploads", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule sweep %q: %w", schedule, err)
	}
	return c, nil
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
