package lifecycle

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/timetracker/internal/foundation/errors"
)

// Source produces lifecycle states and feeds them to a Dispatcher.
type Source interface {
	// Name identifies the source in logs.
	Name() string
	// Initial reports the state to assume before the first notification.
	Initial(fallback State) State
	// Start begins delivering states. It must not block.
	Start(ctx context.Context, d *Dispatcher) error
	// Stop ends delivery and waits for background work to finish.
	Stop() error
}

// Kind names a Source implementation.
type Kind string

const (
	KindManual Kind = "manual"
	KindFile   Kind = "file"
	KindNATS   Kind = "nats"
)

// Options selects and configures a Source.
type Options struct {
	Kind        Kind
	FilePath    string
	NATSURL     string
	NATSSubject string
}

// New builds the Source described by opts.
func New(opts Options) (Source, error) {
	switch opts.Kind {
	case KindManual, "":
		return NewManualSource(), nil
	case KindFile:
		return NewFileSource(opts.FilePath)
	case KindNATS:
		return NewNATSSource(opts.NATSURL, opts.NATSSubject)
	default:
		return nil, errors.ConfigError(fmt.Sprintf("unknown lifecycle source %q", opts.Kind)).Build()
	}
}

// ManualSource never produces states on its own; transitions arrive through
// the daemon's HTTP API.
type ManualSource struct{}

// NewManualSource returns a ManualSource.
func NewManualSource() *ManualSource { return &ManualSource{} }

func (*ManualSource) Name() string                             { return string(KindManual) }
func (*ManualSource) Initial(fallback State) State             { return fallback }
func (*ManualSource) Start(context.Context, *Dispatcher) error { return nil }
func (*ManualSource) Stop() error                              { return nil }
