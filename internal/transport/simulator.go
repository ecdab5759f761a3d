package transport

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/sirupsen/logrus"

	pterrors "pytestlab/internal/errors"
	"pytestlab/internal/profile"
	"pytestlab/internal/simeval"
)

// Simulator evaluates a profile's simulation rules against an internal
// key/value state to answer queries and mutate state on writes. It
// generalizes an ad hoc if/elif command dispatch into profile-declared
// rule matching.
type Simulator struct {
	spec   *profile.Spec
	log    *logrus.Logger
	mu     sync.Mutex
	state  map[string]any
	rng    *rand.Rand
	strict bool // query with no matching rule fails instead of ""
	closed bool
	idn    string
}

// NewSimulator copies the profile's initial simulation state so each
// instance is independent: simulator state is per-instrument. Integer
// values decoded from YAML are stored as float64, the number type simeval
// computes with.
func NewSimulator(spec *profile.Spec, seed int64, strict bool, log *logrus.Logger) *Simulator {
	state := make(map[string]any, len(spec.Simulation.State))
	for k, v := range spec.Simulation.State {
		if n, ok := v.(int); ok {
			v = float64(n)
		}
		state[k] = v
	}
	return &Simulator{
		spec:   spec,
		log:    log,
		state:  state,
		rng:    rand.New(rand.NewSource(seed)),
		strict: strict,
		idn:    fmt.Sprintf("Simulated,%s,SIM,1.0", spec.ModelID),
	}
}

func (s *Simulator) Connect(ctx context.Context) error { return nil }

func (s *Simulator) Write(ctx context.Context, cmd string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return pterrors.NewTransportError(pterrors.Closed, "write", nil)
	}
	if cmd == "*IDN?" {
		return nil // handled by Query; a bare write of *IDN? is a no-op
	}
	_, err := s.dispatchLocked(cmd, false)
	return err
}

func (s *Simulator) Query(ctx context.Context, cmd string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", pterrors.NewTransportError(pterrors.Closed, "query", nil)
	}
	if cmd == "*IDN?" {
		return s.idn, nil
	}
	return s.dispatchLocked(cmd, true)
}

// dispatchLocked implements the rule-matching algorithm: first match
// wins; literal/state-read/update-action rule kinds; atomic per call
// because the caller already holds s.mu.
func (s *Simulator) dispatchLocked(cmd string, isQuery bool) (string, error) {
	for _, rule := range s.spec.SimRules() {
		re := rule.CompiledPattern()
		m := re.FindStringSubmatch(cmd)
		if m == nil {
			continue
		}
		groups := namedGroups(re, m)
		env := &simeval.Env{Groups: groups, State: s.snapshotLocked(), Rand: s.rng}

		if rule.Action == "set" {
			var preResp string
			if rule.ResponseEval == "pre" && hasResponse(rule) {
				r, err := s.resolveResponse(rule, env)
				if err != nil {
					return "", pterrors.NewTransportError(pterrors.Protocol, "sim-eval-response", err)
				}
				preResp = r
			}

			val, err := simeval.Eval(rule.Value, env)
			if err != nil {
				return "", pterrors.NewTransportError(pterrors.Protocol, "sim-eval-value", err)
			}
			s.state[rule.Target] = val

			if !hasResponse(rule) {
				return "", nil
			}
			if rule.ResponseEval == "pre" {
				return preResp, nil
			}
			env.State = s.snapshotLocked()
			resp, err := s.resolveResponse(rule, env)
			if err != nil {
				return "", pterrors.NewTransportError(pterrors.Protocol, "sim-eval-response", err)
			}
			return resp, nil
		}

		if !hasResponse(rule) {
			return "", nil
		}
		resp, err := s.resolveResponse(rule, env)
		if err != nil {
			return "", pterrors.NewTransportError(pterrors.Protocol, "sim-eval-response", err)
		}
		return resp, nil
	}

	if isQuery && s.strict {
		return "", pterrors.NewTransportError(pterrors.Protocol, "query", fmt.Errorf("no simulation rule matched %q", cmd))
	}
	return "", nil
}

// hasResponse reports whether rule carries either a literal or an
// evaluated response (the two are mutually exclusive, enforced at parse
// time by profile.Spec.validate).
func hasResponse(rule *profile.SimRule) bool {
	return rule.Response != "" || rule.ResponseExpr != ""
}

// resolveResponse returns rule.Response verbatim, or evaluates
// rule.ResponseExpr through simeval when that is the field set. There is
// no heuristic here: which field the profile author populated is the
// only signal, so a literal like `+0,"No error"` or a preamble CSV is
// never mistaken for an expression.
func (s *Simulator) resolveResponse(rule *profile.SimRule, env *simeval.Env) (string, error) {
	if rule.ResponseExpr != "" {
		v, err := simeval.Eval(rule.ResponseExpr, env)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%v", v), nil
	}
	return rule.Response, nil
}

func namedGroups(re interface{ SubexpNames() []string }, m []string) map[string]string {
	groups := make(map[string]string)
	for i, name := range re.SubexpNames() {
		if i == 0 || i >= len(m) {
			continue
		}
		key := name
		if key == "" {
			key = fmt.Sprintf("%d", i)
		}
		groups[key] = m[i]
	}
	return groups
}

func (s *Simulator) snapshotLocked() map[string]any {
	snap := make(map[string]any, len(s.state))
	for k, v := range s.state {
		snap[k] = v
	}
	return snap
}

func (s *Simulator) ReadRaw(ctx context.Context, n int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Simulated binary reads return zeroed payloads of the requested
	// length; waveform simulation is exercised via Query responses that
	// the instrument runtime's binary-block parser decodes.
	if n <= 0 {
		n = 0
	}
	return make([]byte, n), nil
}

// maxErrorDrain bounds ClearErrors' drain loop. A profile's error-queue
// rule is free to model a queue that never empties (a fixed literal
// response, say); this is a runaway guard against that, not a real queue
// depth limit.
const maxErrorDrain = 64

// ClearErrors drains the simulated error queue by repeating the error
// query until the no-error sentinel (or an empty response) comes back,
// mirroring a real instrument's error queue rather than reading it once.
func (s *Simulator) ClearErrors(ctx context.Context) ([]string, error) {
	var drained []string
	for i := 0; i < maxErrorDrain; i++ {
		resp, err := s.Query(ctx, ":SYSTem:ERRor?")
		if err != nil {
			return drained, err
		}
		if resp == "" || resp == NoErrorSentinel {
			return drained, nil
		}
		drained = append(drained, resp)
	}
	return drained, nil
}

func (s *Simulator) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Simulator) Identity() string { return s.idn }

// State exposes a read-only snapshot, used by sim-profile CLI diagnostics.
func (s *Simulator) State() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}
