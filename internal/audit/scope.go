package audit

import (
	"context"
	"maps"
	"sync"

	"go.uber.org/zap"
)

// State tracks a guarded call: Pending, then Success or Failed, then
// Recorded. No scope reaches Recorded twice.
type State int

const (
	StatePending State = iota
	StateSuccess
	StateFailed
	StateRecorded
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateSuccess:
		return "SUCCESS"
	case StateFailed:
		return "FAILED"
	case StateRecorded:
		return "RECORDED"
	default:
		return "UNKNOWN"
	}
}

// Scope is one guarded call split into a pre-phase (Begin) and a post-phase
// (End or Settle).
type Scope struct {
	r   *Recorder
	ctx context.Context

	mu    sync.Mutex
	call  Call
	state State
	entry *Entry
}

// Begin is the pre-phase. It writes nothing. An empty action is a wiring
// bug and panics here, before the guarded operation runs.
func (r *Recorder) Begin(ctx context.Context, call Call) *Scope {
	if call.Action == "" {
		panic(ErrEmptyAction)
	}
	call.Metadata = maps.Clone(call.Metadata)
	return &Scope{r: r, ctx: ctx, call: call, state: StatePending}
}

func (s *Scope) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Entry returns what was written, or nil before End.
func (s *Scope) Entry() *Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entry
}

func (s *Scope) SetResourceID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePending {
		s.call.ResourceID = &id
	}
}

func (s *Scope) SetMetadata(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StatePending {
		return
	}
	if s.call.Metadata == nil {
		s.call.Metadata = make(map[string]any)
	}
	s.call.Metadata[key] = value
}

// End settles the call with err (nil means success) and writes the entry.
// Only the first End writes; later calls return ErrAlreadyRecorded.
func (s *Scope) End(err error) error {
	s.mu.Lock()
	if s.state != StatePending {
		s.mu.Unlock()
		return ErrAlreadyRecorded
	}
	status := StatusSuccess
	s.state = StateSuccess
	if err != nil {
		status = StatusFailed
		s.state = StateFailed
		s.call.Metadata = withError(s.call.Metadata, err)
	}
	call := s.call
	s.mu.Unlock()

	ctx, cancel := s.r.writeContext(s.ctx)
	defer cancel()
	entry, werr := s.r.Record(ctx, call, status)

	s.mu.Lock()
	s.state = StateRecorded
	s.entry = entry
	s.mu.Unlock()

	if werr != nil {
		s.r.logger.Error("Audit entry lost",
			zap.String("action", call.Action),
			zap.String("status", string(status)),
			zap.Error(werr))
	}
	return werr
}

// Settle is the post-phase for deferred use: defer scope.Settle(&err). It
// records a panic as FAILED and re-panics with the original value.
func (s *Scope) Settle(errp *error) {
	if p := recover(); p != nil {
		_ = s.End(&PanicError{Value: p})
		panic(p)
	}
	var err error
	if errp != nil {
		err = *errp
	}
	_ = s.End(err)
}

// Guard runs op and records exactly one entry for it. The error returned is
// op's own, never the store's. Like Begin, it panics on an empty action.
func (r *Recorder) Guard(ctx context.Context, call Call, op func(ctx context.Context) error) (err error) {
	scope := r.Begin(ctx, call)
	defer scope.Settle(&err)
	return op(WithScope(ctx, scope))
}

func withError(md map[string]any, err error) map[string]any {
	if md == nil {
		md = make(map[string]any, 1)
	}
	if _, ok := md["error"]; !ok {
		md["error"] = err.Error()
	}
	return md
}

type scopeKey struct{}

func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFromContext returns the scope of the enclosing guarded call, if any.
func ScopeFromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}
