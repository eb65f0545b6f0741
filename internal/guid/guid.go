package guid

import (
	"sync/atomic"

	"github.com/google/uuid"
)

// Allocator hands out simple and random identifiers.
// The zero value is ready to use; its first simple id is 1.
type Allocator struct {
	next atomic.Uint64
}

// NewAllocator creates an Allocator with a fresh counter.
func NewAllocator() *Allocator {
	return &Allocator{}
}

// AllocateSimple returns the next integer id.
// Ids are unique within the allocator but not across process restarts.
func (a *Allocator) AllocateSimple() uint64 {
	return a.next.Add(1)
}

// LastSimple returns the last id handed out by AllocateSimple without
// allocating a new one. It returns 0 before the first allocation.
func (a *Allocator) LastSimple() uint64 {
	return a.next.Load()
}

// AllocateUUID4 returns a random version 4 UUID string.
func (a *Allocator) AllocateUUID4() string {
	return uuid.NewString()
}

// defaultAllocator backs the package-level helpers.
var defaultAllocator = NewAllocator()

// AllocateSimple returns the next id from the process-wide allocator.
func AllocateSimple() uint64 {
	return defaultAllocator.AllocateSimple()
}

// LastSimple returns the last id allocated by the process-wide allocator.
func LastSimple() uint64 {
	return defaultAllocator.LastSimple()
}

// AllocateUUID4 returns a random version 4 UUID string.
func AllocateUUID4() string {
	return defaultAllocator.AllocateUUID4()
}

// Default returns the process-wide allocator.
func Default() *Allocator {
	return defaultAllocator
}
