// Package mapview drives the disease-selection cycle of the map: one fetch
// per selection, superseded responses discarded, and a render-ready result
// re-derived on every successful load.
package mapview

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/triagemap/internal/feed"
)

// State is the phase of the selection cycle.
type State int

const (
	StateIdle State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ErrNothingSelected is returned by Retry before any disease was selected.
var ErrNothingSelected = eris.New("mapview: no disease selected")

// Pending tracks one fetch started by Select or Retry.
type Pending struct {
	DiseaseID  int
	Generation uint64

	done    chan struct{}
	applied bool
}

// Done is closed once the fetch has completed and been applied or discarded.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Applied reports whether the fetch's result updated the view. It is only
// meaningful after Done is closed; a superseded fetch is never applied.
func (p *Pending) Applied() bool {
	select {
	case <-p.done:
		return p.applied
	default:
		return false
	}
}

// Wait blocks until the fetch completes or ctx ends.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot is a consistent copy of the view's state.
type Snapshot struct {
	State      State   `json:"state"`
	DiseaseID  int     `json:"disease_id"`
	Generation uint64  `json:"generation"`
	Err        error   `json:"-"`
	Render     *Render `json:"render,omitempty"`
}

// MarshalJSON adds the error text.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	type plain Snapshot
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(s)}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return json.Marshal(out)
}

// View holds the current disease selection and its render. Every request is
// tagged with a generation number; only the completion carrying the current
// generation may change state.
type View struct {
	source  feed.Source
	builder *Builder
	log     *zap.Logger

	mu        sync.Mutex
	state     State
	diseaseID int
	gen       uint64
	cancel    context.CancelFunc
	render    *Render
	err       error
}

// New creates an idle View.
func New(source feed.Source, builder *Builder) *View {
	return &View{
		source:  source,
		builder: builder,
		log:     zap.L().With(zap.String("component", "mapview")),
	}
}

// Select makes diseaseID the current selection and starts its fetch. Any
// in-flight fetch is canceled and its result, if it still arrives, is
// discarded. ctx bounds the fetch, not the call.
func (v *View) Select(ctx context.Context, diseaseID int) *Pending {
	fctx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	if v.cancel != nil {
		v.cancel()
	}
	v.gen++
	gen := v.gen
	v.state = StateLoading
	v.diseaseID = diseaseID
	v.cancel = cancel
	v.render = nil
	v.err = nil
	v.mu.Unlock()

	v.log.Debug("fetch started", zap.Int("disease_id", diseaseID), zap.Uint64("generation", gen))

	p := &Pending{DiseaseID: diseaseID, Generation: gen, done: make(chan struct{})}
	go func() {
		defer close(p.done)
		defer cancel()

		resp, err := v.source.Fetch(fctx, diseaseID)
		var r *Render
		if err == nil {
			r = v.builder.Build(diseaseID, resp)
		}
		p.applied = v.complete(gen, diseaseID, r, err)
	}()
	return p
}

// Retry refetches the current selection.
func (v *View) Retry(ctx context.Context) (*Pending, error) {
	v.mu.Lock()
	state, id := v.state, v.diseaseID
	v.mu.Unlock()

	if state == StateIdle {
		return nil, ErrNothingSelected
	}
	return v.Select(ctx, id), nil
}

func (v *View) complete(gen uint64, diseaseID int, r *Render, err error) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if gen != v.gen || diseaseID != v.diseaseID {
		v.log.Debug("discarding superseded response",
			zap.Int("disease_id", diseaseID),
			zap.Uint64("generation", gen),
			zap.Uint64("current_generation", v.gen),
		)
		return false
	}

	v.cancel = nil
	if err != nil {
		v.state = StateFailed
		v.render = nil
		v.err = err
		v.log.Error("fetch failed", zap.Int("disease_id", diseaseID), zap.Error(err))
		return true
	}

	v.state = StateReady
	v.render = r
	v.err = nil
	return true
}

// Snapshot returns the current state. Outside Ready the render is the
// neutral placeholder for the selected disease.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	s := Snapshot{
		State:      v.state,
		DiseaseID:  v.diseaseID,
		Generation: v.gen,
		Err:        v.err,
		Render:     v.render,
	}
	v.mu.Unlock()

	if s.State != StateReady && s.State != StateIdle {
		s.Render = v.builder.Placeholder(s.DiseaseID)
	}
	return s
}

// Close cancels any in-flight fetch. Its result is discarded.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
}
