// Package cache defines the GATT cache collaborator consulted by the engine
// before a discovery procedure touches the wire (Read By UUID does not
// consult it), and ships a trivial in-memory implementation.
package cache

import (
	"sync"

	"github.com/user/gattc/gatt"
)

// GATTCache is the interface the engine's Cache Shortcut consults. A cache
// hit lets an initiator satisfy a procedure synchronously, without
// allocating a record or touching the transport. Implementations must be
// safe for concurrent use by multiple connections.
type GATTCache interface {
	SearchAllServices(conn uint16) ([]gatt.DiscoveredService, bool)
	SearchServiceByUUID(conn uint16, uuid gatt.UUID) ([]gatt.DiscoveredService, bool)
	SearchAllCharacteristics(conn uint16, startHandle, endHandle uint16) ([]gatt.DiscoveredCharacteristic, bool)
	SearchCharacteristicsByUUID(conn uint16, startHandle, endHandle uint16, uuid gatt.UUID) ([]gatt.DiscoveredCharacteristic, bool)
	SearchIncludedServices(conn uint16, startHandle, endHandle uint16) ([]gatt.DiscoveredService, bool)
	SearchAllDescriptors(conn uint16, charValueHandle uint16) ([]gatt.DiscoveredDescriptor, bool)

	// ConnUpdate invalidates everything cached for conn in [start, end]. The
	// engine calls this as a side effect of a Database Out Of Sync error,
	// before the error is surfaced to the application.
	ConnUpdate(conn uint16, startHandle, endHandle uint16)
}

type connEntry struct {
	services        []gatt.DiscoveredService
	characteristics map[uint16][]gatt.DiscoveredCharacteristic // service start handle -> chars
	included        map[uint16][]gatt.DiscoveredService        // service start handle -> includes
	descriptors     map[uint16][]gatt.DiscoveredDescriptor     // char value handle -> descriptors
}

func newConnEntry() *connEntry {
	return &connEntry{
		characteristics: make(map[uint16][]gatt.DiscoveredCharacteristic),
		included:        make(map[uint16][]gatt.DiscoveredService),
		descriptors:     make(map[uint16][]gatt.DiscoveredDescriptor),
	}
}

// memCache is a process-local cache keyed by connection handle. It does not
// persist across restarts; a bonded-device persistent cache is a Non-goal.
type memCache struct {
	mu    sync.RWMutex
	conns map[uint16]*connEntry
}

// New creates an empty in-memory GATT cache.
func New() GATTCache {
	return &memCache{conns: make(map[uint16]*connEntry)}
}

func (c *memCache) entry(conn uint16) *connEntry {
	e, ok := c.conns[conn]
	if !ok {
		e = newConnEntry()
		c.conns[conn] = e
	}
	return e
}

// PutAllServices seeds the cache with a complete service list for conn, as
// though a disc_all_svcs procedure had just completed against the wire.
func (c *memCache) PutAllServices(conn uint16, services []gatt.DiscoveredService) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(conn).services = append([]gatt.DiscoveredService{}, services...)
}

// PutCharacteristics seeds the cache with the full characteristic list
// discovered within [startHandle, endHandle] for conn.
func (c *memCache) PutCharacteristics(conn, startHandle, endHandle uint16, chars []gatt.DiscoveredCharacteristic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(conn).characteristics[startHandle] = append([]gatt.DiscoveredCharacteristic{}, chars...)
}

// PutDescriptors seeds the cache with the descriptor list for a
// characteristic's value handle.
func (c *memCache) PutDescriptors(conn, charValueHandle uint16, descs []gatt.DiscoveredDescriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(conn).descriptors[charValueHandle] = append([]gatt.DiscoveredDescriptor{}, descs...)
}

func (c *memCache) SearchAllServices(conn uint16) ([]gatt.DiscoveredService, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[conn]
	if !ok || e.services == nil {
		return nil, false
	}
	return append([]gatt.DiscoveredService{}, e.services...), true
}

func (c *memCache) SearchServiceByUUID(conn uint16, uuid gatt.UUID) ([]gatt.DiscoveredService, bool) {
	all, ok := c.SearchAllServices(conn)
	if !ok {
		return nil, false
	}
	var out []gatt.DiscoveredService
	for _, svc := range all {
		svcUUID, err := gatt.UUIDFromBytes(svc.UUID)
		if err == nil && svcUUID.Equal(uuid) {
			out = append(out, svc)
		}
	}
	return out, true
}

func (c *memCache) SearchAllCharacteristics(conn uint16, startHandle, endHandle uint16) ([]gatt.DiscoveredCharacteristic, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[conn]
	if !ok {
		return nil, false
	}
	chars, ok := e.characteristics[startHandle]
	if !ok {
		return nil, false
	}
	_ = endHandle // range is keyed by service start handle at seed time
	return append([]gatt.DiscoveredCharacteristic{}, chars...), true
}

func (c *memCache) SearchCharacteristicsByUUID(conn uint16, startHandle, endHandle uint16, uuid gatt.UUID) ([]gatt.DiscoveredCharacteristic, bool) {
	all, ok := c.SearchAllCharacteristics(conn, startHandle, endHandle)
	if !ok {
		return nil, false
	}
	var out []gatt.DiscoveredCharacteristic
	for _, ch := range all {
		chUUID, err := gatt.UUIDFromBytes(ch.UUID)
		if err == nil && chUUID.Equal(uuid) {
			out = append(out, ch)
		}
	}
	return out, true
}

func (c *memCache) SearchIncludedServices(conn uint16, startHandle, endHandle uint16) ([]gatt.DiscoveredService, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[conn]
	if !ok {
		return nil, false
	}
	inc, ok := e.included[startHandle]
	if !ok {
		return nil, false
	}
	_ = endHandle
	return append([]gatt.DiscoveredService{}, inc...), true
}

func (c *memCache) SearchAllDescriptors(conn uint16, charValueHandle uint16) ([]gatt.DiscoveredDescriptor, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.conns[conn]
	if !ok {
		return nil, false
	}
	descs, ok := e.descriptors[charValueHandle]
	if !ok {
		return nil, false
	}
	return append([]gatt.DiscoveredDescriptor{}, descs...), true
}

// ConnUpdate drops everything cached for conn in [startHandle, endHandle].
// A full-range update (0x0001-0xFFFF) simply evicts the connection entirely.
func (c *memCache) ConnUpdate(conn uint16, startHandle, endHandle uint16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if startHandle <= 0x0001 && endHandle >= 0xFFFF {
		delete(c.conns, conn)
		return
	}

	e, ok := c.conns[conn]
	if !ok {
		return
	}

	kept := e.services[:0:0]
	for _, svc := range e.services {
		if svc.EndHandle < startHandle || svc.StartHandle > endHandle {
			kept = append(kept, svc)
		} else {
			delete(e.characteristics, svc.StartHandle)
			delete(e.included, svc.StartHandle)
		}
	}
	e.services = kept

	for h := range e.descriptors {
		if h >= startHandle && h <= endHandle {
			delete(e.descriptors, h)
		}
	}
}
