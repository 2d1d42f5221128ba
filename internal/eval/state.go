package eval

import (
	"context"
	"sort"
	"time"

	"github.com/roach88/pql/internal/plan"
	"github.com/roach88/pql/internal/value"
)

// checkInterval is how many Checkpoint calls pass between polls of the
// execution context.
const checkInterval = 128

// Session is the caller-supplied input of one execution.
type Session struct {
	// Globals binds global variable names to values.
	Globals map[string]value.Value

	// Order lists global names in registration order. A case-insensitive
	// dynamic lookup that matches several names takes the first one in
	// Order, as the catalog does at bind time. Names missing from Order
	// are searched after it in sorted order.
	Order []string

	// Now is the current time seen by temporal functions. The zero value
	// is the Unix epoch so that executions stay reproducible.
	Now time.Time
}

// State is the mutable register file of one execution. It must not be
// shared between concurrent executions.
type State struct {
	// Registers holds one value per local slot. An unset register reads
	// as MISSING.
	Registers []value.Value

	// Mode is the typing mode of the execution.
	Mode Mode

	ctx     context.Context
	now     time.Time
	globals map[string]value.Value // by global id
	session map[string]value.Value // by name, for dynamic lookups
	names   []string               // session names, registration order first
	ticks   int
}

// NewState allocates a State with the given number of register slots.
// globalIDs maps each global id referenced by the plan to its name in the
// session.
func NewState(ctx context.Context, slots int, mode Mode, session *Session, globalIDs map[string]string) *State {
	if session == nil {
		session = &Session{}
	}
	now := session.Now
	if now.IsZero() {
		now = time.Unix(0, 0)
	}
	s := &State{
		Registers: make([]value.Value, slots),
		Mode:      mode,
		ctx:       ctx,
		now:       now.UTC(),
		globals:   make(map[string]value.Value, len(globalIDs)),
		session:   session.Globals,
	}
	for id, name := range globalIDs {
		if v, ok := session.Globals[name]; ok {
			s.globals[id] = v
		}
	}
	s.names = sessionOrder(session)
	return s
}

// Context returns the execution context.
func (s *State) Context() context.Context {
	return s.ctx
}

// Now returns the session time.
func (s *State) Now() time.Time {
	return s.now
}

// Load returns the value in a register.
func (s *State) Load(slot int) value.Value {
	v := s.Registers[slot]
	if v == nil {
		return value.MissingValue
	}
	return v
}

// Store writes a register.
func (s *State) Store(slot int, v value.Value) {
	s.Registers[slot] = v
}

// Snapshot copies the registers in slots.
func (s *State) Snapshot(slots []int) []value.Value {
	out := make([]value.Value, len(slots))
	for i, slot := range slots {
		out[i] = s.Registers[slot]
	}
	return out
}

// Restore writes a snapshot taken with the same slots.
func (s *State) Restore(slots []int, row []value.Value) {
	for i, slot := range slots {
		s.Registers[slot] = row[i]
	}
}

// Global returns the value bound to a global id.
func (s *State) Global(id, name string) (value.Value, error) {
	if v, ok := s.globals[id]; ok {
		return v, nil
	}
	return nil, NewError(ErrCodeUnboundGlobal, "global %s has no value in the session", name).
		WithDetail("id", id)
}

// sessionOrder lists every session name once: the names in Order that are
// bound, then the remaining names sorted.
func sessionOrder(session *Session) []string {
	names := make([]string, 0, len(session.Globals))
	seen := make(map[string]bool, len(session.Globals))
	for _, name := range session.Order {
		if _, ok := session.Globals[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range session.Globals {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

// lookupSession resolves a name against session globals. Ties between
// case-insensitive matches go to the first registered name.
func (s *State) lookupSession(name plan.BindingName) (value.Value, bool) {
	if name.Case == plan.CaseSensitive {
		v, ok := s.session[name.Name]
		return v, ok
	}
	for _, n := range s.names {
		if name.Matches(n) {
			return s.session[n], true
		}
	}
	return nil, false
}

// Checkpoint polls the execution context every checkInterval calls.
func (s *State) Checkpoint() error {
	s.ticks++
	if s.ticks%checkInterval != 0 {
		return nil
	}
	return s.Interrupted()
}

// Interrupted checks the execution context now.
func (s *State) Interrupted() error {
	if err := s.ctx.Err(); err != nil {
		return &Error{Code: ErrCodeCancelled, Message: "execution cancelled", cause: err}
	}
	return nil
}

// Recover applies the typing mode to err: in Permissive mode a data error
// becomes MISSING. Every other error is classified and returned.
func (s *State) Recover(err error) (value.Value, error) {
	err = Classify(err)
	if s.Mode == Permissive && IsDataError(err) {
		return value.MissingValue, nil
	}
	return nil, err
}
