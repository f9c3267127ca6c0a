package grants

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/syra-platform/authcore/pkg/observability"
)

// DefaultSweepSchedule runs the expiry sweep every five minutes.
const DefaultSweepSchedule = "@every 5m"

// Sweeper periodically stamps expired on lapsed grants. It exists purely for
// bookkeeping and audit completeness; enforcement reads compute validity from
// ExpiresAt and never wait for a sweep.
type Sweeper struct {
	workflow *Workflow
	log      *observability.Logger
	cron     *cron.Cron
}

// NewSweeper schedules workflow.MarkExpired on the given cron schedule.
// schedule defaults to DefaultSweepSchedule.
func NewSweeper(workflow *Workflow, log *observability.Logger, schedule string) (*Sweeper, error) {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	s := &Sweeper{workflow: workflow, log: log, cron: cron.New()}
	_, err := s.cron.AddFunc(schedule, func() {
		marked, err := s.workflow.MarkExpired(context.Background())
		if err != nil {
			s.log.WithError(err).Warn("grant expiry sweep failed")
			return
		}
		if marked > 0 {
			s.log.WithField("marked", marked).Info("stamped expired grants")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("grants: schedule sweep: %w", err)
	}
	return s, nil
}

// Start begins the sweep schedule.
func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}
