package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// RegisteredCapability pairs a descriptor with its handler.
type RegisteredCapability struct {
	Descriptor Descriptor
	Handler    Handler
}

// Registry manages capability registration and lookup. It implements
// Dispatcher.
type Registry struct {
	capabilities map[string]*RegisteredCapability
	mu           sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		capabilities: make(map[string]*RegisteredCapability),
	}
}

// Register adds or replaces a capability in the registry.
func (r *Registry) Register(cap RegisteredCapability) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[cap.Descriptor.Name] = &cap
}

// Unregister removes a capability from the registry.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.capabilities, name)
}

// Get returns a registered capability by name, or nil if not found.
func (r *Registry) Get(name string) *RegisteredCapability {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.capabilities[name]
}

// Names returns the sorted names of all registered capabilities.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Groups returns the sorted distinct group names across all capabilities.
func (r *Registry) Groups() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	for _, cap := range r.capabilities {
		seen[cap.Descriptor.Group] = true
	}
	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	return groups
}

// Count returns the number of registered capabilities.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.capabilities)
}

// GetCapabilities returns descriptors for the named groups, sorted by name.
// An empty group list returns every registered capability.
func (r *Registry) GetCapabilities(groups []string) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	wanted := make(map[string]bool, len(groups))
	for _, g := range groups {
		wanted[g] = true
	}

	var descs []Descriptor
	for _, cap := range r.capabilities {
		if len(groups) == 0 || wanted[cap.Descriptor.Group] {
			descs = append(descs, cap.Descriptor)
		}
	}
	sort.Slice(descs, func(i, j int) bool { return descs[i].Name < descs[j].Name })
	return descs
}

// Call invokes a capability by name. Unknown names are an error.
func (r *Registry) Call(ctx context.Context, name string, args map[string]interface{}) (Response, error) {
	cap := r.Get(name)
	if cap == nil {
		return Response{}, fmt.Errorf("unknown capability: %s", name)
	}
	return cap.Handler(ctx, args)
}

// GetStringArg extracts a string argument from parsed capability arguments.
func GetStringArg(args map[string]interface{}, key string) (string, bool) {
	v, ok := args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetFloatArg extracts a numeric argument from parsed capability arguments.
func GetFloatArg(args map[string]interface{}, key string) (float64, bool) {
	v, ok := args[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
