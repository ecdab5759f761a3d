// Package session implements MeasurementSession's two run modes: a
// parameter sweep over the Cartesian product of declared values, and a
// timed concurrent acquisition loop with background tasks. The
// grace-period/force-close shutdown in concurrent.go uses a
// context.WithTimeout cancellation, a WaitGroup, and a select against a
// time.Timer for the grace deadline.
package session

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/frame"
	"pytestlab/internal/instrument"
)

// Parameter is one sweep dimension: an ordered sequence of
// {name, values, unit}.
type Parameter struct {
	Name   string
	Values []any
	Unit   string
}

// AcquisitionContext is handed to every acquisition/background callable:
// the current parameter bindings (sweep mode only; empty in concurrent
// mode) plus the session's instrument aliases.
type AcquisitionContext struct {
	Params      map[string]any
	Instruments map[string]instrument.Driver
}

// AcquisitionFunc returns a flat key->value map. Keys from different
// acquisitions registered in the same run must be disjoint.
type AcquisitionFunc func(ctx *AcquisitionContext) (map[string]any, error)

// NamedAcquisition pairs a callable with the name it is registered under,
// preserving the registration order acquisitions must run in.
type NamedAcquisition struct {
	Name string
	Fn   AcquisitionFunc
}

// Session owns a borrowed set of Instruments and serializes concurrent
// access to each one through a per-alias mutex: concurrent callables that
// touch the same instrument serialize through a per-instrument mutex the
// session provides.
type Session struct {
	Instruments map[string]instrument.Driver
	Log         *logrus.Logger

	instrumentLocks map[string]*sync.Mutex
}

// New builds a Session over instruments borrowed from a Bench.
func New(instruments map[string]instrument.Driver, log *logrus.Logger) *Session {
	locks := make(map[string]*sync.Mutex, len(instruments))
	for alias := range instruments {
		locks[alias] = &sync.Mutex{}
	}
	return &Session{Instruments: instruments, Log: log, instrumentLocks: locks}
}

// WithInstrument runs fn while holding the named instrument's mutex,
// the mechanism concurrent-mode callables are expected to use instead of
// retaining raw references across goroutines.
func (s *Session) WithInstrument(alias string, fn func(instrument.Driver) error) error {
	lock, ok := s.instrumentLocks[alias]
	if !ok {
		return fmt.Errorf("session: no instrument registered under alias %q", alias)
	}
	lock.Lock()
	defer lock.Unlock()
	return fn(s.Instruments[alias])
}

// RunSweep enumerates the Cartesian product of params in declared order
// (outermost = first declared) and invokes every registered acquisition
// sequentially at each point, appending one row per point to the output
// frame.
func (s *Session) RunSweep(params []Parameter, acquisitions []NamedAcquisition) (*frame.Result, error) {
	total := 1
	for _, p := range params {
		total *= len(p.Values)
	}

	out := frame.New()
	units := make(map[string]string, len(params))
	paramNames := make([]string, len(params))
	for i, p := range params {
		units[p.Name] = p.Unit
		paramNames[i] = p.Name
	}

	var seenKeys map[string]string // measurement key -> owning acquisition name, checked once

	indices := make([]int, len(params))
	for point := 0; point < total; point++ {
		row := make(map[string]any, len(params))
		paramBindings := make(map[string]any, len(params))
		for i, p := range params {
			v := p.Values[indices[i]]
			row[p.Name] = v
			paramBindings[p.Name] = v
		}

		ctx := &AcquisitionContext{Params: paramBindings, Instruments: s.Instruments}
		measured := make(map[string]any)
		order := append([]string{}, paramNames...)
		for _, acq := range acquisitions {
			vals, err := acq.Fn(ctx)
			if err != nil {
				s.Log.WithError(err).WithField("acquisition", acq.Name).Warn("acquisition failed, recording null row")
				continue
			}
			if seenKeys == nil {
				seenKeys = make(map[string]string, len(vals))
			}
			ownKeys := make([]string, 0, len(vals))
			for k := range vals {
				if owner, ok := seenKeys[k]; ok && owner != acq.Name {
					return nil, pterrors.NewSessionError(pterrors.AcquisitionKeyConflict, k,
						fmt.Errorf("key %q returned by both %q and %q", k, owner, acq.Name))
				}
				seenKeys[k] = acq.Name
				ownKeys = append(ownKeys, k)
			}
			sort.Strings(ownKeys) // vals is a map; order keys deterministically within one acquisition's own result
			order = append(order, ownKeys...)
			for k, v := range vals {
				measured[k] = v
			}
		}
		for k, v := range measured {
			row[k] = v
		}
		out.AppendRow(row, order, units)

		for i := len(indices) - 1; i >= 0; i-- {
			indices[i]++
			if indices[i] < len(params[i].Values) {
				break
			}
			indices[i] = 0
		}
	}

	return &frame.Result{Kind: frame.KindTabular, Tabular: out}, nil
}
