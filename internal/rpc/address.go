package rpc

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// DefaultRegistry is the registry name a session server publishes under when
// none is configured.
const DefaultRegistry = "MatlabServer"

// Addr is a parsed remote session reference of the form
// //host:port/registryName.
type Addr struct {
	Host     string
	Port     int
	Registry string
}

// ParseAddr parses a //host:port/registryName reference. The registry part
// may be omitted, in which case DefaultRegistry applies.
func ParseAddr(s string) (Addr, error) {
	trimmed := strings.TrimPrefix(s, "//")
	if trimmed == s {
		return Addr{}, errors.Errorf("rpc: address %q must start with //", s)
	}
	hostPort, registry, _ := strings.Cut(trimmed, "/")
	if registry == "" {
		registry = DefaultRegistry
	}
	host, portStr, ok := strings.Cut(hostPort, ":")
	if !ok || host == "" {
		return Addr{}, errors.Errorf("rpc: address %q missing host:port", s)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Addr{}, errors.Errorf("rpc: address %q has invalid port", s)
	}
	return Addr{Host: host, Port: port, Registry: registry}, nil
}

// Endpoint returns the ZeroMQ endpoint for the address.
func (a Addr) Endpoint() string {
	return fmt.Sprintf("tcp://%s:%d", a.Host, a.Port)
}

// String renders the address back in //host:port/registry form.
func (a Addr) String() string {
	return fmt.Sprintf("//%s:%d/%s", a.Host, a.Port, a.Registry)
}
