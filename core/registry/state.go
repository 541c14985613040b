package registry

import (
	"sync"

	"github.com/OADA/formats-sub000/core"
	"github.com/OADA/formats-sub000/core/schema"
)

// State is the lifecycle stage of a registry entry.
type State int

const (
	// StateUnregistered means nothing is known about the key.
	StateUnregistered State = iota
	// StateDocumentKnown means the raw document is stored but not compiled.
	StateDocumentKnown
	// StateCompiling means a compilation is in flight.
	StateCompiling
	// StateCompiled means a validator is available.
	StateCompiled
	// StateFailed means the last compilation failed; registering the
	// document again allows a retry.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDocumentKnown:
		return "document-known"
	case StateCompiling:
		return "compiling"
	case StateCompiled:
		return "compiled"
	case StateFailed:
		return "failed"
	default:
		return "unregistered"
	}
}

// entry tracks one schema document. All fields except fragMu are guarded by
// the registry mutex.
type entry struct {
	key         string
	state       State
	doc         schema.Document
	validator   core.Validator
	compilation Compilation
	err         error

	// done is closed when the in-flight compilation finishes.
	done chan struct{}

	// fragMu serialises on-demand fragment compilations, which share the
	// entry's compilation.
	fragMu sync.Mutex
}
