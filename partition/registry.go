package partition

import (
	"fmt"
	"sync"

	"github.com/psa-spm/spm-core/ipc"
	"github.com/psa-spm/spm-core/status"
)

// VersionPolicy selects how a RotService's MinVersion constrains the
// version a client requests on connect, per spec.md §3's
// `version_policy ∈ {STRICT, RELAXED}`.
type VersionPolicy uint8

const (
	// VersionRelaxed accepts any requested version >= MinVersion.
	VersionRelaxed VersionPolicy = iota
	// VersionStrict accepts only a requested version == MinVersion.
	VersionStrict
)

// RotService describes one SID's static connect-time policy (spec.md
// §3's RotService type): the minimum version it will serve, how
// strictly that minimum is enforced, and whether NSPE callers
// (status.InvalidSource) may connect at all.
type RotService struct {
	SID           uint32
	MinVersion    uint32
	VersionPolicy VersionPolicy
	AllowNSPE     bool
}

// Partition is one secure-world component: a service mask, an owning
// Loop, and the RoT service IDs (SIDs) it exposes. Per spec.md §4.4 a
// partition processes exactly one active message at a time, serialized
// by its single handler goroutine taking messages one by one through
// the Loop's signal Wait and its Dispatcher.
type Partition struct {
	// ID is this partition's identity, used as CallerIdentity/owner for
	// handles and ITS records it creates as a client of another
	// partition.
	ID int32
	// Loop is this partition's dedicated scheduling goroutine's queue.
	Loop *Loop
	// SIDs lists the RoT service identifiers this partition implements.
	SIDs []uint32
	// Services optionally supplies per-SID version/NSPE policy for the
	// entries in SIDs. A SID present in SIDs but absent from Services
	// gets the permissive default (MinVersion 0, VersionRelaxed,
	// AllowNSPE true).
	Services []RotService
	// Enqueue hands a newly dispatched active message to this
	// partition's inbox (package server's Dispatcher.Enqueue), waking
	// its Loop.Wait. Wired by package spm during boot; calling Connect/
	// Call against a partition before it is wired is a configuration
	// error.
	Enqueue func(msg *ipc.ActiveMessage, complete func(status.Code))
}

// Registry routes a service identifier (SID) to the partition
// implementing it, mirroring the teacher's handlerMap
// (register/query/list triple) in handler.go, re-scoped from gRPC
// service names to PSA SIDs.
type Registry struct {
	mu         sync.RWMutex
	partitions map[uint32]*Partition
	services   map[uint32]RotService
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		partitions: make(map[uint32]*Partition),
		services:   make(map[uint32]RotService),
	}
}

// Register associates every SID in p.SIDs with p. Panics if a SID is
// already claimed by another partition - two partitions racing to serve
// the same RoT service is a boot-time configuration error, not a
// recoverable runtime condition, matching the teacher's
// registerService panic-on-duplicate behavior.
func (r *Registry) Register(p *Partition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range p.SIDs {
		if existing, ok := r.partitions[sid]; ok {
			panic(fmt.Sprintf("partition: sid %#x already registered to partition %d", sid, existing.ID))
		}
		r.partitions[sid] = p
		r.services[sid] = serviceFor(p, sid)
	}
}

// serviceFor returns the declared RotService policy for sid within p,
// or the permissive default if p.Services names nothing for it.
func serviceFor(p *Partition, sid uint32) RotService {
	for _, s := range p.Services {
		if s.SID == sid {
			return s
		}
	}
	return RotService{SID: sid, MinVersion: 0, VersionPolicy: VersionRelaxed, AllowNSPE: true}
}

// Lookup returns the partition implementing sid, or nil, false if no
// partition claims it (the caller should fail connect with
// ConnectionRefused).
func (r *Registry) Lookup(sid uint32) (*Partition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partitions[sid]
	return p, ok
}

// Service returns the RotService policy the partition registered for
// sid currently declares (its Services entry, or the permissive
// default), or false if no partition claims it.
func (r *Registry) Service(sid uint32) (RotService, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.partitions[sid]
	if !ok {
		return RotService{}, false
	}
	return serviceFor(p, sid), true
}
