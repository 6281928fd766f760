package echoapi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trezcool/bursar/core"
	"github.com/trezcool/bursar/core/ledger"
	"github.com/trezcool/bursar/core/user"
)

var schedulerNow = time.Now // mockable

// overdueScheduler ages the ledger once a day at hour (UTC).
type overdueScheduler struct {
	ledgerSvc *ledger.Service
	logger    core.Logger
	hour      int
	done      chan struct{}
	stopOnce  sync.Once
}

func newOverdueScheduler(ledgerSvc *ledger.Service, logger core.Logger, hour int) *overdueScheduler {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	return &overdueScheduler{ledgerSvc: ledgerSvc, logger: logger, hour: hour, done: make(chan struct{})}
}

// nextRun returns the first run time strictly after now.
func (sch *overdueScheduler) nextRun(now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), sch.hour, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (sch *overdueScheduler) run() {
	for {
		now := schedulerNow()
		timer := time.NewTimer(sch.nextRun(now).Sub(now))
		select {
		case <-sch.done:
			timer.Stop()
			return
		case <-timer.C:
			sch.sweep()
		}
	}
}

func (sch *overdueScheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	count, err := sch.ledgerSvc.MarkOverdue(ctx, user.System, schedulerNow())
	if err != nil {
		sch.logger.Error(fmt.Sprintf("marking overdue fees: %v", err), err)
		return
	}
	sch.logger.Info(fmt.Sprintf("%d fee entries marked overdue", count))
}

func (sch *overdueScheduler) stop() {
	sch.stopOnce.Do(func() { close(sch.done) })
}
