// Package spm implements spec.md §4.10: the boot sequence that
// allocates the two handle pools, wires every partition's dispatcher
// into the partition registry, starts the built-in ITS partition, and
// freezes the result into a System a client can be built against.
package spm

import (
	"fmt"

	"github.com/psa-spm/spm-core/client"
	"github.com/psa-spm/spm-core/internal/obslog"
	"github.com/psa-spm/spm-core/ipc"
	"github.com/psa-spm/spm-core/its"
	"github.com/psa-spm/spm-core/nvstore"
	"github.com/psa-spm/spm-core/partition"
	"github.com/psa-spm/spm-core/server"
	"github.com/psa-spm/spm-core/status"
)

// MemoryProtectionHAL is the pluggable external collaborator named in
// spec.md §1: a hook for platform-specific MPU/SMPU/PPU programming
// invoked once per partition at boot. The in-repo default is a no-op,
// since real register-level memory protection has no Go-expressible
// equivalent on the host this module builds for.
type MemoryProtectionHAL interface {
	// ConfigurePartition is invoked once per partition descriptor
	// during Boot, before its Loop goroutine starts.
	ConfigurePartition(id int32) error
}

// NoopMemoryProtectionHAL is the default MemoryProtectionHAL: it does
// nothing and never fails.
type NoopMemoryProtectionHAL struct{}

// ConfigurePartition implements MemoryProtectionHAL.
func (NoopMemoryProtectionHAL) ConfigurePartition(int32) error { return nil }

// PartitionDescriptor is the static, boot-time description of one
// secure partition (spec.md §4's Partition type: "Created at boot from
// static registry"). Handler is run on the partition's own goroutine
// once its Dispatcher is wired, and must loop Wait/Get/reply for as
// long as the partition lives.
type PartitionDescriptor struct {
	ID      int32
	SIDs    []uint32
	Handler func(disp *server.Dispatcher)
}

// System is the frozen, booted SPM: the handle space, the partition
// registry, and the logger every package was wired with. Per spec.md
// §9's resolved open question, this is passed explicitly rather than
// held in mutable package-level globals.
type System struct {
	Space    *ipc.Space
	Registry *partition.Registry
	Log      *obslog.Log

	loops []*partition.Loop
}

// Option configures Boot.
type Option func(*bootConfig)

type bootConfig struct {
	spaceOpts []ipc.Option
	hal       MemoryProtectionHAL
	log       *obslog.Log
	itsStore  nvstore.Store
}

// WithSpaceOptions forwards ipc.Option values (WithMaxChannels, etc) to
// the Space constructed for this System.
func WithSpaceOptions(opts ...ipc.Option) Option {
	return func(c *bootConfig) { c.spaceOpts = append(c.spaceOpts, opts...) }
}

// WithMemoryProtectionHAL overrides the default no-op HAL.
func WithMemoryProtectionHAL(hal MemoryProtectionHAL) Option {
	return func(c *bootConfig) { c.hal = hal }
}

// WithLogger overrides the default logger (obslog.Default: stderr at
// informational level). Pass nil to disable logging.
func WithLogger(log *obslog.Log) Option {
	return func(c *bootConfig) { c.log = log }
}

// WithITSStore overrides the NV-store backing the built-in ITS
// partition; defaults to an in-process nvstore.Memory.
func WithITSStore(store nvstore.Store) Option {
	return func(c *bootConfig) { c.itsStore = store }
}

// ITSPartitionID is the fixed partition identity of the built-in
// Internal Trusted Storage service, analogous to the original
// implementation's reserved root-of-trust partition IDs.
const ITSPartitionID int32 = 1

// Boot allocates the handle space, registers the built-in ITS partition
// plus every descriptor in descriptors, invokes the MemoryProtectionHAL
// once per partition, and starts each partition's Loop goroutine.
// Returns a frozen System ready to have clients built against it via
// NewClient.
func Boot(descriptors []PartitionDescriptor, opts ...Option) (*System, error) {
	cfg := &bootConfig{
		hal:      NoopMemoryProtectionHAL{},
		log:      obslog.Default(),
		itsStore: nvstore.NewMemory(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	space, err := ipc.NewSpace(cfg.spaceOpts...)
	if err != nil {
		return nil, fmt.Errorf("spm: allocate handle space: %w", err)
	}

	sys := &System{
		Space:    space,
		Registry: partition.NewRegistry(),
		Log:      cfg.log,
	}

	itsSvc := its.NewService(cfg.itsStore)
	all := append([]PartitionDescriptor{{
		ID:      ITSPartitionID,
		SIDs:    its.SIDs,
		Handler: func(disp *server.Dispatcher) { its.Serve(disp, itsSvc) },
	}}, descriptors...)

	for _, d := range all {
		if d.Handler == nil {
			status.Panicf("spm: partition %d has no handler", d.ID)
		}
		if err := cfg.hal.ConfigurePartition(d.ID); err != nil {
			return nil, fmt.Errorf("spm: configure memory protection for partition %d: %w", d.ID, err)
		}

		loop := partition.NewLoop()
		disp := server.NewDispatcher(loop)
		part := &partition.Partition{ID: d.ID, Loop: loop, SIDs: d.SIDs, Enqueue: disp.Enqueue}
		sys.Registry.Register(part)
		sys.loops = append(sys.loops, loop)

		cfg.log.Info().Int("partition", int(d.ID)).Log("partition registered")

		go loop.Run()
		go d.Handler(disp)
	}

	return sys, nil
}

// Shutdown terminates every partition's Loop, allowing their handler
// and Run goroutines to exit once their current message completes.
func (s *System) Shutdown() {
	for _, l := range s.loops {
		l.Terminate()
	}
}

// NewClient builds a client.Client bound to this System's registry and
// handle space, identified by owner. Use status.InvalidSource for the
// NSPE's own identity, matching its.DirectClient's stamping convention.
func (s *System) NewClient(owner int32) *client.Client {
	return client.New(owner, s.Registry, s.Space)
}
