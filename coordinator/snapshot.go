package coordinator

import (
	"sync"
	"time"

	"github.com/cadsdf/ostromd/forecast"
	"github.com/cadsdf/ostromd/types"
	"github.com/cadsdf/ostromd/types/maybe"
)

// Status describes the health of the last refresh attempt. A degraded
// snapshot still carries the previously fetched data.
type Status struct {
	Ok          bool
	LastError   string
	LastErrorAt time.Time
}

// Snapshot is an immutable view of everything fetched from the tariff
// provider. Readers get the whole thing by value, a refresh swaps it
// wholesale.
type Snapshot struct {
	Forecast    forecast.Forecast
	Fees        types.MonthlyFees
	Contract    maybe.Maybe[types.Contract]
	Consumption []types.Consumption
	ContractID  string
	FetchedAt   time.Time
	Initialized bool
	Status      Status
}

// Stale reports whether the snapshot has no price for the given time.
func (s Snapshot) Stale(now time.Time) bool {
	return !s.Initialized || !s.Forecast.At(now).IsValid()
}

type snapshotStore struct {
	mu   sync.RWMutex
	snap Snapshot
}

func (s *snapshotStore) Load() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

func (s *snapshotStore) Swap(snap Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

func (s *snapshotStore) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	fn(&s.snap)
	s.mu.Unlock()
}

type inflightFlag struct {
	mu  sync.Mutex
	set bool
}

func (f *inflightFlag) Set(v bool) {
	f.mu.Lock()
	f.set = v
	f.mu.Unlock()
}

func (f *inflightFlag) Get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set
}

type subscriberList struct {
	mu  sync.Mutex
	fns []func(Snapshot)
}

func newSubscriberList() *subscriberList {
	return &subscriberList{}
}

func (l *subscriberList) Add(fn func(Snapshot)) {
	l.mu.Lock()
	l.fns = append(l.fns, fn)
	l.mu.Unlock()
}

func (l *subscriberList) Notify(snap Snapshot) {
	l.mu.Lock()
	fns := make([]func(Snapshot), len(l.fns))
	copy(fns, l.fns)
	l.mu.Unlock()
	for _, fn := range fns {
		go fn(snap)
	}
}
