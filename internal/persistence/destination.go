package persistence

import (
	"fmt"
	"strings"

	"github.com/bozzyboy/nano-director-5/internal/services"
)

// Destination identifies where a project is saved.
type Destination string

const (
	DestinationNone     Destination = ""
	DestinationLocal    Destination = "local"
	DestinationCloud    Destination = "cloud"
	DestinationDownload Destination = "download"
)

// ParseDestination accepts "local", "cloud", "download", or "" for none.
func ParseDestination(value string) (Destination, error) {
	d := Destination(strings.ToLower(strings.TrimSpace(value)))
	switch d {
	case DestinationNone, DestinationLocal, DestinationCloud, DestinationDownload:
		return d, nil
	}
	return DestinationNone, services.Wrap(services.ErrOutOfRange, "persistence", "parse destination", fmt.Sprintf("unknown destination %q", value), nil)
}

// Autosavable reports whether autosave may write to d.
func (d Destination) Autosavable() bool {
	return d == DestinationLocal || d == DestinationCloud
}
