package port

import (
	"context"
	"fmt"
	"sync"
)

// Detector reports which device family is wired to a port.
type Detector interface {
	DeviceAt(i Index) DeviceType
}

// Registry hands out exclusive claims on ports. Slots are allocated up
// front for every valid index; no handle to a slot escapes a claim.
type Registry struct {
	detector Detector
	slots    [MaxIndex + 1]slot
}

type slot struct {
	sem chan struct{}
}

// NewRegistry creates a registry that consults d to check device types.
func NewRegistry(d Detector) *Registry {
	r := &Registry{detector: d}
	for i := MinIndex; i <= MaxIndex; i++ {
		r.slots[i].sem = make(chan struct{}, 1)
	}
	return r
}

// Claim takes exclusive access to port i, which must have a device of
// type want wired to it. It blocks while another caller holds the port;
// if ctx ends first the claim fails with ErrPortUnavailable.
func (r *Registry) Claim(ctx context.Context, i Index, want DeviceType) (*Claim, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("claim %s: %w", i, ErrInvalidPort)
	}
	if got := r.detector.DeviceAt(i); got != want {
		return nil, fmt.Errorf("claim %s as %s (found %s): %w", i, want, got, ErrWrongDeviceType)
	}
	s := &r.slots[i]
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("claim %s: %w: %v", i, ErrPortUnavailable, ctx.Err())
	}
	return &Claim{index: i, device: want, slot: s}, nil
}

// Claim is the capability to touch one port's registers. It is valid from
// Registry.Claim until Return.
type Claim struct {
	index  Index
	device DeviceType

	once sync.Once
	slot *slot
}

// Index returns the claimed port.
func (c *Claim) Index() Index {
	return c.index
}

// Device returns the device family the port was claimed as.
func (c *Claim) Device() DeviceType {
	return c.device
}

// Return releases the port. Calling it more than once is a no-op.
func (c *Claim) Return() {
	c.once.Do(func() {
		<-c.slot.sem
	})
}
