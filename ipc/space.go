package ipc

import (
	"errors"

	"github.com/psa-spm/spm-core/handle"
)

// Default pool capacities, matching the original MAX_CHANNELS /
// MAX_ACTIVE_MESSAGES build-time constants (spec.md §6).
const (
	DefaultMaxChannels       = 32
	DefaultMaxActiveMessages = 32
)

// Space bundles the two independent handle pools spec.md §4.1 describes:
// one sized for live Channels, one for in-flight ActiveMessages. They
// are separate pools (not a single pool discriminated by kind) because
// the original implementation sizes and allocates them independently,
// and nothing in spec.md requires handle values to be comparable across
// the two entity kinds.
type Space struct {
	Channels  *handle.Manager[*Channel]
	Messages  *handle.Manager[*ActiveMessage]
	Validator AccessValidator
}

// spaceOptions holds configuration for a [Space] instance.
type spaceOptions struct {
	maxChannels       int
	maxActiveMessages int
	validator         AccessValidator
}

// Option configures a [Space] instance during construction.
type Option interface {
	applyOption(*spaceOptions) error
}

type spaceOptionImpl struct {
	fn func(*spaceOptions) error
}

func (o *spaceOptionImpl) applyOption(opts *spaceOptions) error {
	return o.fn(opts)
}

// WithMaxChannels overrides DefaultMaxChannels.
func WithMaxChannels(n int) Option {
	return &spaceOptionImpl{fn: func(opts *spaceOptions) error {
		if n <= 0 {
			return errors.New("ipc: max channels must be positive")
		}
		opts.maxChannels = n
		return nil
	}}
}

// WithMaxActiveMessages overrides DefaultMaxActiveMessages.
func WithMaxActiveMessages(n int) Option {
	return &spaceOptionImpl{fn: func(opts *spaceOptions) error {
		if n <= 0 {
			return errors.New("ipc: max active messages must be positive")
		}
		opts.maxActiveMessages = n
		return nil
	}}
}

// WithAccessValidator installs a non-default AccessValidator, e.g. one
// backed by a platform's memory-protection HAL.
func WithAccessValidator(v AccessValidator) Option {
	return &spaceOptionImpl{fn: func(opts *spaceOptions) error {
		if v == nil {
			return errors.New("ipc: validator must not be nil")
		}
		opts.validator = v
		return nil
	}}
}

// NewSpace constructs a Space, applying opts over defaults.
func NewSpace(opts ...Option) (*Space, error) {
	cfg := &spaceOptions{
		maxChannels:       DefaultMaxChannels,
		maxActiveMessages: DefaultMaxActiveMessages,
		validator:         NoopValidator{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyOption(cfg); err != nil {
			return nil, err
		}
	}
	return &Space{
		Channels:  handle.NewManager[*Channel](cfg.maxChannels),
		Messages:  handle.NewManager[*ActiveMessage](cfg.maxActiveMessages),
		Validator: cfg.validator,
	}, nil
}
