// Package format defines the common module loader contract and the
// dispatcher that probes registered loaders in priority order, per spec
// §4.5.
package format

import (
	"github.com/trackerplay/oxdz/module"
	"github.com/trackerplay/oxdz/oxdzerr"
)

// ProbeInfo is the cheap, non-destructive result of a successful probe: just
// enough to decide which loader's Load to call and what to show before a
// full parse.
type ProbeInfo struct {
	Format module.FormatID
	Title  string
}

// Loader is implemented once per supported module format.
type Loader interface {
	// Name identifies the loader in logs and diagnostics.
	Name() string

	// Probe reads only magic bytes / structural signatures and returns a
	// ProbeInfo, or an oxdzerr.Format error if b does not look like this
	// loader's format. hint is the caller-supplied player id hint (may be
	// empty); a loader may use it to skip probing when it clearly doesn't
	// match.
	Probe(b []byte, hint string) (ProbeInfo, error)

	// Load performs the full parse, given a ProbeInfo from a prior
	// successful Probe call on the same bytes.
	Load(b []byte, info ProbeInfo) (*module.Module, error)
}

var registry []Loader

// Register adds a loader to the dispatch list, in call order. init()
// functions in each format subpackage call this.
func Register(l Loader) {
	registry = append(registry, l)
}

// Loaders returns the registered loaders in priority order.
func Loaders() []Loader {
	return registry
}

// Load probes every registered loader in priority order and returns the
// Module produced by the first one whose Probe succeeds.
func Load(b []byte, hint string) (*module.Module, error) {
	for _, l := range registry {
		info, err := l.Probe(b, hint)
		if err != nil {
			continue
		}
		return l.Load(b, info)
	}
	return nil, oxdzerr.Formatf("unsupported module format")
}
