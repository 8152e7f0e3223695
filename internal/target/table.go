// Package target resolves logical server identifiers to upstream base URLs.
package target

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// ErrUnknownServer is returned when a server identifier is not configured.
var ErrUnknownServer = errors.New("unknown server")

// Table maps server identifiers to base URLs. It is read-only once built and
// safe for concurrent use.
type Table struct {
	servers map[string]string
}

// NewTable copies servers into a new Table.
func NewTable(servers map[string]string) *Table {
	return &Table{servers: maps.Clone(servers)}
}

// Resolve returns the base URL configured for server. Lookup is an exact,
// case-sensitive match.
func (t *Table) Resolve(server string) (string, error) {
	base, ok := t.servers[server]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownServer, server)
	}
	return base, nil
}

// Names returns the configured server identifiers in sorted order.
func (t *Table) Names() []string {
	return slices.Sorted(maps.Keys(t.servers))
}

// Len returns the number of configured servers.
func (t *Table) Len() int {
	return len(t.servers)
}
