package state

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	fsmutil "github.com/opsdeck/opsdeck/internal/pkg/util/fsm"
)

const (
	// EventBegin (Active) marks an action as in flight.
	EventBegin = "begin"
	// EventSucceed ends an action on a green system.
	EventSucceed = "succeed"
	// EventRollback starts the recovery branch of a failed deployment.
	EventRollback = "rollback"
	// EventSettle finishes a rollback on an unhealthy system.
	EventSettle = "settle"
)

// Machine drives SystemStatus transitions.
//
//	any resting status --begin--> DEPLOYING --succeed--> HEALTHY
//	                              DEPLOYING --rollback--> ROLLING_BACK --settle--> UNHEALTHY
//
// DEPLOYING is not a source of begin, which is what makes a second trigger a no-op.
type Machine struct {
	*fsm.FSM
}

// NewMachine creates a Machine in initial. onEnter runs after every transition
// with the destination status.
func NewMachine(initial model.SystemStatus, onEnter func(model.SystemStatus)) *Machine {
	m := &Machine{}

	resting := []string{}
	for _, s := range model.Statuses() {
		if !s.Busy() {
			resting = append(resting, string(s))
		}
	}

	events := fsm.Events{
		{Name: EventBegin, Src: resting, Dst: string(model.StatusDeploying)},
		{Name: EventSucceed, Src: []string{string(model.StatusDeploying)}, Dst: string(model.StatusHealthy)},
		{Name: EventRollback, Src: []string{string(model.StatusDeploying)}, Dst: string(model.StatusRollingBack)},
		{Name: EventSettle, Src: []string{string(model.StatusRollingBack)}, Dst: string(model.StatusUnhealthy)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(func(_ context.Context, e *fsm.Event) error {
			if onEnter != nil {
				onEnter(model.SystemStatus(e.Dst))
			}
			return nil
		}),
	}

	m.FSM = fsm.NewFSM(string(initial), events, callbacks)
	return m
}

// Status returns the current status.
func (m *Machine) Status() model.SystemStatus {
	return model.SystemStatus(m.Current())
}
