package serial

import (
	"sort"
	"strings"
	"sync"
)

// Driver serves identifiers of the form scheme://name for one scheme.
type Driver interface {
	// Open opens the endpoint called name. Errors should wrap one of the
	// package sentinels (ErrDeviceNotFound, ErrDeviceInUse, ...).
	Open(name string, config Config) (Port, error)
	// List returns the names of the endpoints currently available.
	List() ([]string, error)
}

var (
	driversMu sync.RWMutex
	drivers   = map[string]Driver{}
)

// schemeBinder is implemented by drivers that name their ports after the
// scheme they are registered under.
type schemeBinder interface {
	bindScheme(scheme string)
}

// RegisterDriver makes a driver available under scheme. Registering the
// same scheme twice replaces the earlier driver.
func RegisterDriver(scheme string, d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	if d == nil {
		delete(drivers, scheme)
		return
	}
	if b, ok := d.(schemeBinder); ok {
		b.bindScheme(scheme)
	}
	drivers[scheme] = d
}

func lookupDriver(scheme string) (Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[scheme]
	return d, ok
}

// driverSchemes returns the registered schemes in sorted order
func driverSchemes() []string {
	driversMu.RLock()
	defer driversMu.RUnlock()
	schemes := make([]string, 0, len(drivers))
	for s := range drivers {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// splitIdentifier splits scheme://name identifiers.
func splitIdentifier(identifier string) (scheme, name string, ok bool) {
	scheme, name, ok = strings.Cut(identifier, "://")
	if !ok || scheme == "" {
		return "", "", false
	}
	return scheme, name, true
}

// listDriverEndpoints collects scheme://name identifiers from every driver
func listDriverEndpoints() ([]string, error) {
	var endpoints []string
	for _, scheme := range driverSchemes() {
		d, ok := lookupDriver(scheme)
		if !ok {
			continue
		}
		names, err := d.List()
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			endpoints = append(endpoints, scheme+"://"+name)
		}
	}
	return endpoints, nil
}

func init() {
	RegisterDriver(SimulatedScheme, DefaultSimulator)
}
