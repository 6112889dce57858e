package jobs

import (
	"fmt"

	"github.com/qmuntal/stateless"

	"trendboard/internal/models"
)

// Run status triggers.
const (
	triggerComplete = "complete"
	triggerDegrade  = "degrade"
	triggerAbort    = "abort"
)

// runStatus tracks a sync run through running -> success | partial | failed.
// Every terminal state has no outgoing transitions, so a run is finalized once.
type runStatus struct {
	machine *stateless.StateMachine
}

func newRunStatus() *runStatus {
	machine := stateless.NewStateMachine(models.SyncRunning)

	machine.Configure(models.SyncRunning).
		Permit(triggerComplete, models.SyncSuccess).
		Permit(triggerDegrade, models.SyncPartial).
		Permit(triggerAbort, models.SyncFailed)

	machine.Configure(models.SyncSuccess)
	machine.Configure(models.SyncPartial)
	machine.Configure(models.SyncFailed)

	return &runStatus{machine: machine}
}

// outcomeTrigger picks the terminal transition from per-indicator counts:
// failed when nothing succeeded but something failed, partial when both
// happened, success otherwise.
func outcomeTrigger(succeeded, failed int) string {
	switch {
	case failed > 0 && succeeded == 0:
		return triggerAbort
	case failed > 0:
		return triggerDegrade
	default:
		return triggerComplete
	}
}

// finish moves the run to its terminal state from per-indicator counts.
func (s *runStatus) finish(succeeded, failed int) error {
	return s.fire(outcomeTrigger(succeeded, failed))
}

// abort marks the run failed after a fatal error.
func (s *runStatus) abort() error {
	return s.fire(triggerAbort)
}

func (s *runStatus) fire(trigger string) error {
	if err := s.machine.Fire(trigger); err != nil {
		return fmt.Errorf("sync status transition %q from %v: %w", trigger, s.machine.MustState(), err)
	}
	return nil
}

// state returns the current status.
func (s *runStatus) state() string {
	return s.machine.MustState().(string)
}
