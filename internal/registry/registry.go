// Package registry keeps the peripherals discovered by the scanner.
package registry

import (
	"sync"

	"github.com/srg/hrmon/internal/device"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Registry is a deduplicated collection of peripherals keyed by address.
// Entries keep the position of their first discovery; a rediscovery replaces
// the stored handle entirely. Entries are never removed by disconnects.
type Registry struct {
	mu      sync.RWMutex
	devices *orderedmap.OrderedMap[string, device.PeripheralHandle]
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		devices: orderedmap.New[string, device.PeripheralHandle](),
	}
}

// Upsert stores p under its address and reports whether the address was new.
func (r *Registry) Upsert(p device.PeripheralHandle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, present := r.devices.Set(p.Address, p)
	return !present
}

// Get returns the peripheral stored under address.
func (r *Registry) Get(address string) (device.PeripheralHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices.Get(address)
}

// Snapshot returns the peripherals in discovery order.
func (r *Registry) Snapshot() []device.PeripheralHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]device.PeripheralHandle, 0, r.devices.Len())
	for pair := r.devices.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of distinct peripherals.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.devices.Len()
}
