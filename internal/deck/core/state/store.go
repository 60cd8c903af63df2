package state

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"k8s.io/utils/clock"

	"github.com/opsdeck/opsdeck/internal/deck/core/model"
	fsmutil "github.com/opsdeck/opsdeck/internal/pkg/util/fsm"
)

// Store owns the whole deck state. Every mutation is atomic and publishes
// one or more events; there is no ordering between concurrent writers
// beyond that, so the last write wins.
type Store struct {
	mu sync.Mutex

	clock   clock.PassiveClock
	machine *Machine

	logs    []model.LogEntry
	history []model.DeploymentRecord
	vitals  model.Vitals
	alert   string
	flags   model.Flags
	scripts map[model.ScriptKey]string
	editor  *editorSession

	seq    uint64
	nextID uint64
	subs   map[uint64]chan model.Event
	buffer int
}

type editorSession struct {
	key    model.ScriptKey
	saving bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp events.
func WithClock(c clock.PassiveClock) Option {
	return func(s *Store) { s.clock = c }
}

// WithInitialStatus sets the boot status. Busy statuses are ignored.
func WithInitialStatus(status model.SystemStatus) Option {
	return func(s *Store) {
		if !status.Busy() {
			s.machine = NewMachine(status, s.onEnter)
		}
	}
}

// WithFlags sets the boot values of the panel toggles.
func WithFlags(f model.Flags) Option {
	return func(s *Store) { s.flags = f }
}

// WithEventBuffer sets the per-subscriber channel size.
func WithEventBuffer(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.buffer = n
		}
	}
}

// NewStore returns a Store seeded with the panel defaults.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:   clock.RealClock{},
		vitals:  model.InitialVitals(),
		scripts: model.DefaultScripts(),
		subs:    make(map[uint64]chan model.Event),
		buffer:  256,
	}
	s.machine = NewMachine(model.StatusHealthy, s.onEnter)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// onEnter runs inside Machine.Event, which is only ever called with mu held.
func (s *Store) onEnter(status model.SystemStatus) {
	s.publish(model.EventStatus, status)
}

// Status returns the current status.
func (s *Store) Status() model.SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.machine.Status()
}

// Begin marks an action as in flight and runs prepare under the same lock.
// It returns ErrBusy, leaving the store untouched, if an action is already running.
func (s *Store) Begin(prepare func(tx *Txn)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Event(context.Background(), EventBegin); err != nil {
		if fsmutil.IsRejected(err) {
			return ErrBusy
		}
		return fmt.Errorf("begin action: %w", err)
	}

	if prepare != nil {
		prepare(&Txn{s: s})
	}
	return nil
}

// Fire applies a status event and, if the machine accepted it, runs apply
// under the same lock. It reports whether the transition happened.
func (s *Store) Fire(event string, apply func(tx *Txn)) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.machine.Event(context.Background(), event); err != nil {
		if fsmutil.IsRejected(err) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", event, err)
	}

	if apply != nil {
		apply(&Txn{s: s})
	}
	return true, nil
}

// Update runs fn under the store lock.
func (s *Store) Update(fn func(tx *Txn)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&Txn{s: s})
}

// AppendLog appends e to the log.
func (s *Store) AppendLog(e model.LogEntry) {
	s.Update(func(tx *Txn) { tx.AppendLog(e) })
}

// SetVitals replaces the vitals with fn applied to the current value.
func (s *Store) SetVitals(fn func(v model.Vitals) model.Vitals) model.Vitals {
	var out model.Vitals
	s.Update(func(tx *Txn) { out = tx.SetVitals(fn) })
	return out
}

// Logs returns a copy of the log in append order.
func (s *Store) Logs() []model.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.logs)
}

// History returns a copy of the ledger, newest first.
func (s *Store) History() []model.DeploymentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.history)
}

// Vitals returns the current vitals.
func (s *Store) Vitals() model.Vitals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vitals
}

// Flags returns the panel toggles.
func (s *Store) Flags() model.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flags
}

// SetFlags replaces both toggles. A running action keeps the values it
// captured when it started.
func (s *Store) SetFlags(f model.Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flags == f {
		return
	}
	s.flags = f
	s.publish(model.EventFlags, f)
}

// UpdateFlags applies fn to the toggles and returns the result.
func (s *Store) UpdateFlags(fn func(f model.Flags) model.Flags) model.Flags {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.flags)
	if next != s.flags {
		s.flags = next
		s.publish(model.EventFlags, next)
	}
	return next
}

// Snapshot returns a consistent copy of the whole state.
func (s *Store) Snapshot() model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.Snapshot{
		Status:  s.machine.Status(),
		Logs:    slices.Clone(s.logs),
		History: slices.Clone(s.history),
		Vitals:  s.vitals,
		Alert:   s.alert,
		Flags:   s.flags,
		Editor:  s.editorLocked(),
	}
}

// Txn is the mutation handle passed to Begin, Fire and Update.
// It is only valid inside the callback.
type Txn struct {
	s *Store
}

// ClearLogs empties the log.
func (tx *Txn) ClearLogs() {
	tx.s.logs = nil
	tx.s.publish(model.EventLogCleared, nil)
}

// AppendLog appends e to the log.
func (tx *Txn) AppendLog(e model.LogEntry) {
	tx.s.logs = append(tx.s.logs, e)
	tx.s.publish(model.EventLogAppended, e)
}

// SetAlert sets the security alert. An empty message clears it.
func (tx *Txn) SetAlert(msg string) {
	if tx.s.alert == msg {
		return
	}
	tx.s.alert = msg
	tx.s.publish(model.EventAlert, msg)
}

// SetVitals replaces the vitals with fn applied to the current value.
func (tx *Txn) SetVitals(fn func(v model.Vitals) model.Vitals) model.Vitals {
	tx.s.vitals = fn(tx.s.vitals)
	tx.s.publish(model.EventVitals, tx.s.vitals)
	return tx.s.vitals
}

// PrependRecord builds a record from the current ledger length and puts it
// first. Reading the length and prepending happen atomically.
func (tx *Txn) PrependRecord(build func(prior int) model.DeploymentRecord) model.DeploymentRecord {
	rec := build(len(tx.s.history))
	tx.s.history = slices.Insert(tx.s.history, 0, rec)
	tx.s.publish(model.EventHistory, rec)
	return rec
}

// Flags returns the toggles as seen inside the transaction.
func (tx *Txn) Flags() model.Flags {
	return tx.s.flags
}
