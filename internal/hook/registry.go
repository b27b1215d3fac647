package hook

import "sync"

// Registry is the ordered, identifier-keyed set of hooks for one process.
type Registry struct {
	mu     sync.RWMutex
	defs   []Definition
	index  map[string]int
	sealed bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register validates and stores a copy of def. Failed registrations leave the registry unchanged.
func (r *Registry) Register(def Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	def.Schema = def.Schema.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, exists := r.index[def.ID]; exists {
		return &DuplicateHookError{ID: def.ID}
	}
	r.index[def.ID] = len(r.defs)
	r.defs = append(r.defs, def)
	return nil
}

// RegisterHook is the application-facing registration surface.
func (r *Registry) RegisterHook(id, task, matching string, schema Schema, callback Callback) error {
	return r.Register(Definition{
		ID:       id,
		Task:     task,
		Matching: matching,
		Schema:   schema,
		Callback: callback,
	})
}

// List returns registered hooks in registration order.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, len(r.defs))
	for i, def := range r.defs {
		def.Schema = def.Schema.Clone()
		out[i] = def
	}
	return out
}

// Lookup returns the hook registered under id.
func (r *Registry) Lookup(id string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Definition{}, false
	}
	def := r.defs[i]
	def.Schema = def.Schema.Clone()
	return def, true
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// Seal rejects further registrations. It is called when listening starts.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}
