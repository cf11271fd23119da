package ebt

import (
	"fmt"
	"sync"
)

// Extension is the capability set shared by matches, watchers and
// targets (§4.1). It has no Parse method: CLI argument parsing is not
// implemented by the core or by the built-ins under ebt/ext, and
// remains the external collaborator's responsibility.
type Extension interface {
	// Name is the up-to-31-byte ASCII name the extension is
	// registered and looked up under.
	Name() string

	// Help prints usage information for the extension.
	Help() string

	// New allocates a zero-valued payload for this extension, used
	// both as an Init default and as the value resolveRef decodes a
	// record's raw bytes into during blob parsing.
	New() Payload
}

// Payload is the opaque, extension-owned data carried by a match,
// watcher or target entry. Its wire form is whatever Extension.New
// produces; the core only knows its ReadFrom/WriteTo/size contract
// (via the codec helpers in blob.go), never its field layout.
type Payload interface {
	ReadFrom(b []byte) error
	WriteTo() ([]byte, error)

	// FinalCheck is invoked once at parse time (pass=0) and once
	// after every graph mutation (pass=1), given the table name and
	// the enclosing chain's hook-mask; extensions use the two passes
	// to split bounds checking from cross-rule validation.
	FinalCheck(table string, hookMask HookMask, pass int) error

	// Print renders the payload the way "-L -Lx" would: as option
	// text a reparse would accept. Built-ins implement this fully;
	// it is part of the plug-in contract for Non-goal CLI rendering
	// only insofar as argument syntax is concerned.
	Print() string

	// Compare reports whether two payloads of the same extension are
	// equal, used by -D's by-value delete and by round-trip tests.
	Compare(other Payload) bool
}

// TableCheck is the single extra capability a table registration
// carries beyond the four shared ones: a post-validation hook run after
// the validator's final-check dispatch, giving a table a chance to
// reject a rule-set the generic invariants alone wouldn't catch.
type TableCheck func(t *Table) error

// TableDescriptor is what a table registers at startup (§3, §4.1):
// its name, which hooks it participates in, its initial rule-set, and
// an optional post-validation hook.
type TableDescriptor struct {
	Name       string
	ValidHooks ValidHooks
	Initial    func() *Table
	Check      TableCheck
}

// Registry holds the process-wide match/watcher/target/table
// registrations (§4.1, §9 "process-wide extension registries"). Unlike
// the source this is modeled on, it is not global state: callers
// construct one explicitly and pass it through to Parse and the
// validator, per the design note in spec.md §9.
type Registry struct {
	mu       sync.RWMutex
	matches  map[string]Extension
	watchers map[string]Extension
	targets  map[string]Extension
	tables   map[string]TableDescriptor
}

// NewRegistry returns a Registry pre-populated with the standard
// target, which must always be resolvable (§4.1).
func NewRegistry() *Registry {
	r := &Registry{
		matches:  make(map[string]Extension),
		watchers: make(map[string]Extension),
		targets:  make(map[string]Extension),
		tables:   make(map[string]TableDescriptor),
	}
	r.RegisterTarget(standardTargetExtension{})
	return r
}

func (r *Registry) register(m map[string]Extension, e Extension) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := e.Name()
	if len(name) == 0 || len(name) > ExtensionNameLen-1 {
		panic(fmt.Sprintf("ebt: invalid extension name %q", name))
	}

	if _, dup := m[name]; dup {
		panic(fmt.Sprintf("ebt: duplicate extension registration %q", name))
	}

	m[name] = e
}

// RegisterMatch adds a match extension to the registry.
func (r *Registry) RegisterMatch(e Extension) { r.register(r.matches, e) }

// RegisterWatcher adds a watcher extension to the registry.
func (r *Registry) RegisterWatcher(e Extension) { r.register(r.watchers, e) }

// RegisterTarget adds a target extension to the registry.
func (r *Registry) RegisterTarget(e Extension) { r.register(r.targets, e) }

// RegisterTable adds a table descriptor to the registry.
func (r *Registry) RegisterTable(d TableDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, dup := r.tables[d.Name]; dup {
		panic(fmt.Sprintf("ebt: duplicate table registration %q", d.Name))
	}

	r.tables[d.Name] = d
}

func lookup(m map[string]Extension, name string) (Extension, bool) {
	e, ok := m[name]
	return e, ok
}

// Match looks up a registered match extension by name.
func (r *Registry) Match(name string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.matches, name)
}

// Watcher looks up a registered watcher extension by name.
func (r *Registry) Watcher(name string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.watchers, name)
}

// Target looks up a registered target extension by name.
func (r *Registry) Target(name string) (Extension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lookup(r.targets, name)
}

// Table looks up a registered table descriptor by name.
func (r *Registry) Table(name string) (TableDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tables[name]
	return d, ok
}

// HasTargetName reports whether name collides with any registered
// target, used by new-chain name validation (§4.4).
func (r *Registry) HasTargetName(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.targets[name]
	return ok
}
