package bench

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/instrument"
	"pytestlab/internal/profile"
	"pytestlab/internal/transport"
)

// Options configures Bench construction beyond what the descriptor itself
// carries. The forced-simulation toggle lives here as one element of the
// struct passed into Open, rather than as a package-global.
type Options struct {
	CatalogRoot          string
	ForceSimulate        bool
	ParallelConnect      bool
	RecordTo             string // non-empty wraps every transport in a Recorder
	ReplayFrom           transport.SessionDocument
	StrictReplayLeftover bool
	SimSeed              int64
	StrictSimQuery       bool
	TransportOpts        transport.Options
	Log                  *logrus.Logger
}

// Bench owns a set of named Instruments constructed from a Descriptor.
type Bench struct {
	Descriptor  *Descriptor
	opts        Options
	instruments map[string]instrument.Driver
	order       []string // construction order, for reverse-order shutdown
	mu          sync.Mutex
}

// Open resolves every instrument entry's profile and transport, connects
// sequentially (or in parallel when opts.ParallelConnect), wraps it with
// the safety overlay, and installs it under bench.<alias>.
func Open(ctx context.Context, desc *Descriptor, opts Options) (*Bench, error) {
	if opts.Log == nil {
		opts.Log = logrus.New()
	}
	if opts.TransportOpts == (transport.Options{}) {
		opts.TransportOpts = transport.DefaultOptions()
	}
	RegisterMetrics()

	b := &Bench{Descriptor: desc, opts: opts, instruments: map[string]instrument.Driver{}}

	aliases := make([]string, 0, len(desc.Instruments))
	for alias := range desc.Instruments {
		aliases = append(aliases, alias)
	}

	type built struct {
		alias string
		drv   instrument.Driver
	}
	results := make([]built, len(aliases))

	buildOne := func(i int) error {
		alias := aliases[i]
		drv, err := b.buildInstrument(ctx, alias, desc.Instruments[alias])
		if err != nil {
			ConnectFailures.WithLabelValues(alias).Inc()
			return fmt.Errorf("alias %s: %w", alias, err)
		}
		results[i] = built{alias: alias, drv: drv}
		return nil
	}

	if opts.ParallelConnect {
		g, _ := errgroup.WithContext(ctx)
		for i := range aliases {
			i := i
			g.Go(func() error { return buildOne(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := range aliases {
			if err := buildOne(i); err != nil {
				return nil, err
			}
		}
	}

	for _, r := range results {
		b.instruments[r.alias] = r.drv
		b.order = append(b.order, r.alias)
	}
	InstrumentsConnected.Set(float64(len(b.instruments)))
	return b, nil
}

func (b *Bench) buildInstrument(ctx context.Context, alias string, entry InstrumentEntry) (instrument.Driver, error) {
	profilePath, err := profile.ResolvePath(entry.Profile, b.opts.CatalogRoot)
	if err != nil {
		return nil, err
	}
	spec, err := profile.Load(profilePath)
	if err != nil {
		return nil, err
	}

	simulate := b.Descriptor.Simulate
	if entry.Simulate != nil {
		simulate = *entry.Simulate
	}
	if b.opts.ForceSimulate {
		simulate = true
	}

	backendType := b.Descriptor.BackendDefaults.Type
	if backendType == "" {
		backendType = BackendVISA
	}
	if entry.Backend != nil && entry.Backend.Type != "" {
		backendType = entry.Backend.Type
	}
	if simulate {
		backendType = BackendSim
	}
	if entry.Address == "" && backendType == BackendVISA {
		backendType = BackendSim
	}
	if b.opts.ReplayFrom != nil {
		backendType = BackendReplay
	}

	var t transport.Transport
	switch backendType {
	case BackendSim:
		t = transport.NewSimulator(spec, b.opts.SimSeed, b.opts.StrictSimQuery, b.opts.Log)
	case BackendVISA:
		t = transport.NewHardware(entry.Address, b.opts.TransportOpts, b.opts.Log)
	case BackendReplay:
		aliasLog, ok := b.opts.ReplayFrom[alias]
		if !ok {
			return nil, pterrors.NewConfigError("replay", fmt.Errorf("session document has no entry for alias %s", alias))
		}
		t = transport.NewReplayer(alias, aliasLog.Log, b.opts.StrictReplayLeftover, b.opts.Log)
	default:
		return nil, pterrors.NewConfigError("backend", fmt.Errorf("unknown backend type %q", backendType))
	}

	if backendType != BackendReplay && b.opts.RecordTo != "" {
		// outputPath is deliberately empty: Recorder.Close would otherwise
		// flush a single-alias document per instrument, each overwriting
		// the last at the shared path. Bench.Close merges every
		// instrument's Entries() into one document instead.
		t = transport.NewRecorder(t, entry.Profile, alias, "", b.opts.Log)
	}

	overlay, err := mergeSafety(spec.SafetySchema, entry.SafetyLimits)
	if err != nil {
		return nil, err
	}

	drv, err := instrument.New(spec, t, alias, overlay, "", b.opts.Log)
	if err != nil {
		return nil, err
	}
	if err := drv.Connect(ctx, backendType == BackendReplay); err != nil {
		return nil, err
	}
	return drv, nil
}

// Instrument returns the driver for alias, already connected.
func (b *Bench) Instrument(alias string) (instrument.Driver, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	d, ok := b.instruments[alias]
	return d, ok
}

// FlushRecording merges every recording-wrapped instrument's entries into
// one session document and writes it to opts.RecordTo. A no-op when
// recording was never enabled.
func (b *Bench) FlushRecording() error {
	if b.opts.RecordTo == "" {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	doc := transport.SessionDocument{}
	for alias, drv := range b.instruments {
		raw, ok := drv.(instrument.RawDriver)
		if !ok {
			continue
		}
		rec, ok := raw.RawTransport().(*transport.Recorder)
		if !ok {
			continue
		}
		doc[alias] = &transport.AliasLog{Profile: b.Descriptor.Instruments[alias].Profile, Log: rec.Entries()}
	}
	if len(doc) == 0 {
		return nil
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return pterrors.NewConfigError("marshal merged session document", err)
	}
	if err := os.WriteFile(b.opts.RecordTo, out, 0o644); err != nil {
		return pterrors.NewConfigError(fmt.Sprintf("write session document %s", b.opts.RecordTo), err)
	}
	return nil
}

// Close shuts down every instrument in reverse construction order,
// best-effort, collecting failures rather than aborting partway through:
// each close failure is collected rather than propagated, but the
// composite failure is reported. The merged recording, if any, is
// flushed before any instrument closes.
func (b *Bench) Close() error {
	if err := b.FlushRecording(); err != nil {
		b.opts.Log.WithError(err).Warn("failed to flush merged session recording")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for i := len(b.order) - 1; i >= 0; i-- {
		alias := b.order[i]
		if err := b.instruments[alias].Close(); err != nil {
			CloseFailures.WithLabelValues(alias).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", alias, err))
		}
	}
	InstrumentsConnected.Set(0)
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("bench close: %d failure(s): %v", len(errs), errs)
}
