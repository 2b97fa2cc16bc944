package heap

// Pin is a scoped handle on a pinned Object: constructing one pins its
// target, and Release unpins it. The original uses a C++ move-only
// smart pointer for this; Go has no move semantics, so Pin instead
// documents the discipline explicitly — exactly one Release per Pin,
// and a Pin must not be copied after Release (a zero value is safe to
// Release again, a no-op).
type Pin struct {
	mgr *Manager
	obj Object
}

// NewPin pins obj and returns a handle responsible for unpinning it
// exactly once.
func (m *Manager) NewPin(obj Object) Pin {
	m.Pin(obj)
	return Pin{mgr: m, obj: obj}
}

// Get returns the pinned object, or nil for a released or zero Pin.
func (p Pin) Get() Object { return p.obj }

// Release unpins the held object. Calling Release on an already-released
// or zero Pin is a safe no-op.
func (p *Pin) Release() {
	if p.obj == nil {
		return
	}
	p.mgr.Unpin(p.obj)
	p.obj = nil
	p.mgr = nil
}

// Reassign releases the currently held object, if any, and pins obj in
// its place, reusing the handle — the Go analogue of the original's
// AutoPtr::set, used where a local is repeatedly rebound to a new
// allocation within the same scope.
func (p *Pin) Reassign(obj Object) {
	mgr := p.mgr
	p.Release()
	p.mgr = mgr
	if obj == nil {
		return
	}
	mgr.Pin(obj)
	p.obj = obj
}
