package heap

// Object is any value the Manager tracks: a Funscript string, array,
// object, function or scope. Each carries its own Header and knows how
// to enumerate its outgoing references for the collector.
type Object interface {
	// HeapHeader returns the bookkeeping record the Manager mutates.
	// Implementations embed Header and return &obj.Header.
	HeapHeader() *Header

	// Refs invokes callback once for every Object this one directly
	// references (array elements, object fields, a closure's captured
	// scope, a scope's parent). callback may be called with nil-safety
	// left to the caller; implementations should skip nil refs.
	Refs(callback func(Object))
}

// Header is the bookkeeping record embedded in every tracked Object: its
// allocation size (for budget accounting), its pin count, and the
// reachable flag the collector flips during a cycle.
type Header struct {
	size      uintptr
	pins      int
	reachable bool
}

// Size reports the byte budget this object was tracked with.
func (h *Header) Size() uintptr { return h.size }

// Manager owns an Allocator and the set of Objects allocated through it.
// It pins newly created objects until the caller establishes a real
// reference to them, and runs mark-sweep collection either explicitly or
// once on allocator out-of-memory.
type Manager struct {
	alloc   Allocator
	tracked []Object
}

// NewManager creates a Manager delegating raw budget accounting to alloc.
func NewManager(alloc Allocator) *Manager {
	return &Manager{alloc: alloc}
}

// Track registers obj as a new heap allocation of size bytes, reserving
// that budget from the allocator (retrying once after a collection cycle
// on out-of-memory, per the original's allocate-and-retry policy) and
// pinning it once so it survives until the caller either pins it again
// through a Pin or installs it as a field of some already-reachable
// object.
func (m *Manager) Track(obj Object, size uintptr) error {
	if err := m.alloc.Reserve(size); err != nil {
		m.Collect()
		if err := m.alloc.Reserve(size); err != nil {
			return err
		}
	}
	h := obj.HeapHeader()
	h.size = size
	h.pins = 1
	m.tracked = append(m.tracked, obj)
	return nil
}

// Pin increments obj's pin count, keeping it (and everything reachable
// from it) alive across the next Collect even if nothing else on the
// live stack references it yet.
func (m *Manager) Pin(obj Object) {
	obj.HeapHeader().pins++
}

// Unpin decrements obj's pin count. It does not itself free obj — that
// only happens for a still-unreachable object at the next Collect.
func (m *Manager) Unpin(obj Object) {
	h := obj.HeapHeader()
	if h.pins == 0 {
		panic("heap: unpin of an object with no outstanding pin")
	}
	h.pins--
}

// Collect runs one mark-sweep cycle: every pinned tracked object is a
// root; reachability is flooded outward along Refs; anything left
// unreached is dropped from tracking and its budget released.
func (m *Manager) Collect() {
	for _, obj := range m.tracked {
		obj.HeapHeader().reachable = false
	}

	var queue []Object
	for _, obj := range m.tracked {
		if obj.HeapHeader().pins > 0 {
			obj.HeapHeader().reachable = true
			queue = append(queue, obj)
		}
	}
	for len(queue) > 0 {
		obj := queue[0]
		queue = queue[1:]
		obj.Refs(func(ref Object) {
			if ref == nil {
				return
			}
			h := ref.HeapHeader()
			if h.reachable {
				return
			}
			h.reachable = true
			queue = append(queue, ref)
		})
	}

	kept := m.tracked[:0]
	for _, obj := range m.tracked {
		if obj.HeapHeader().reachable {
			kept = append(kept, obj)
			continue
		}
		m.alloc.Release(obj.HeapHeader().size)
	}
	m.tracked = kept
}

// Len reports the number of objects currently tracked, for tests and
// diagnostics.
func (m *Manager) Len() int { return len(m.tracked) }
