package serial

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// DefaultDeviceRoot is where ListPorts looks for terminal devices.
const DefaultDeviceRoot = "/dev"

// Regular expressions for different types of serial devices
var serialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^ttyUSB\d+$`), // USB serial adapters
	regexp.MustCompile(`^ttyACM\d+$`), // USB CDC/ACM devices
	regexp.MustCompile(`^ttyS\d+$`),   // Standard serial ports
	regexp.MustCompile(`^ttyAMA\d+$`), // ARM/Raspberry Pi serial
	regexp.MustCompile(`^ttymxc\d+$`), // i.MX serial ports
	regexp.MustCompile(`^ttyO\d+$`),   // OMAP serial ports
	regexp.MustCompile(`^ttySAC\d+$`), // Samsung serial ports
	regexp.MustCompile(`^ttyTHS\d+$`), // Tegra serial ports
}

// Exclude patterns for virtual terminals and other non-serial devices
var excludePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^tty\d+$`),  // Virtual terminals (tty1, tty2, etc.)
	regexp.MustCompile(`^console$`), // Console
	regexp.MustCompile(`^ptmx$`),    // Pseudo-terminal multiplexer
	regexp.MustCompile(`^pty.*$`),   // Pseudo-terminals
	regexp.MustCompile(`^pts/.*$`),  // Pseudo-terminal slaves
}

// Directory enumerates the transports currently available.
type Directory struct {
	// Root is scanned for terminal devices. Default: /dev
	Root string
	// IncludeDrivers adds the endpoints of registered drivers.
	IncludeDrivers bool
}

// ListPorts returns the serial devices under /dev followed by the endpoints
// of registered drivers. The result is empty, not nil, when nothing is
// attached.
func ListPorts() ([]string, error) {
	return Directory{Root: DefaultDeviceRoot, IncludeDrivers: true}.List()
}

// List returns the available identifiers in sorted order. Only a failure to
// read the directory itself is an error; it is returned as *DirectoryError.
func (d Directory) List() ([]string, error) {
	root := d.Root
	if root == "" {
		root = DefaultDeviceRoot
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &DirectoryError{Root: root, Err: err}
	}

	ports := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if !isSerialName(name) {
			continue
		}

		fullPath := filepath.Join(root, name)
		// Verify it's a character device (not a directory or regular file)
		if isCharacterDevice(fullPath) {
			ports = append(ports, fullPath)
		}
	}
	sort.Strings(ports)

	if d.IncludeDrivers {
		endpoints, err := listDriverEndpoints()
		if err != nil {
			return nil, &DirectoryError{Root: root, Err: err}
		}
		ports = append(ports, endpoints...)
	}
	return ports, nil
}

// isSerialName reports whether a device name looks like a serial port
func isSerialName(name string) bool {
	for _, p := range excludePatterns {
		if p.MatchString(name) {
			return false
		}
	}
	for _, p := range serialPatterns {
		if p.MatchString(name) {
			return true
		}
	}
	return false
}

// isCharacterDevice checks if the given path is a character device
func isCharacterDevice(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// PortInfo describes a serial device. USB fields are empty for other ports.
type PortInfo struct {
	Name            string `json:"name"`
	Path            string `json:"path"`
	Description     string `json:"description"`
	VendorID        string `json:"vendor_id,omitempty"`
	ProductID       string `json:"product_id,omitempty"`
	SerialNumber    string `json:"serial_number,omitempty"`
	Manufacturer    string `json:"manufacturer,omitempty"`
	Product         string `json:"product,omitempty"`
	InterfaceNumber string `json:"interface_number,omitempty"`
	BusNumber       string `json:"bus_number,omitempty"`
	DeviceNumber    string `json:"device_number,omitempty"`
}

// GetPortInfo returns detailed information about a specific port. Driver
// identifiers get a description naming their scheme.
func GetPortInfo(portPath string) (*PortInfo, error) {
	if scheme, name, ok := splitIdentifier(portPath); ok {
		return driverPortInfo(portPath, scheme, name)
	}

	if !isCharacterDevice(portPath) {
		return nil, ErrDeviceNotFound
	}

	name := filepath.Base(portPath)
	info := &PortInfo{
		Name:        name,
		Path:        portPath,
		Description: getPortDescription(name),
	}

	if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
		enrichUSBInfo(info)
	}
	return info, nil
}

func driverPortInfo(identifier, scheme, name string) (*PortInfo, error) {
	drv, ok := lookupDriver(scheme)
	if !ok {
		return nil, ErrUnknownPort
	}
	names, err := drv.List()
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		if n == name {
			return &PortInfo{
				Name:        name,
				Path:        identifier,
				Description: strings.ToUpper(scheme[:1]) + scheme[1:] + " Port",
			}, nil
		}
	}
	return nil, ErrDeviceNotFound
}

// getPortDescription provides human-readable descriptions for different port types
func getPortDescription(name string) string {
	switch {
	case strings.HasPrefix(name, "ttyUSB"):
		return "USB Serial Port"
	case strings.HasPrefix(name, "ttyACM"):
		return "USB CDC/ACM Device"
	case strings.HasPrefix(name, "ttyAMA"):
		return "ARM Serial Port"
	case strings.HasPrefix(name, "ttymxc"):
		return "i.MX Serial Port"
	case strings.HasPrefix(name, "ttySAC"):
		return "Samsung Serial Port"
	case strings.HasPrefix(name, "ttyTHS"):
		return "Tegra Serial Port"
	case strings.HasPrefix(name, "ttyO"):
		return "OMAP Serial Port"
	case strings.HasPrefix(name, "ttyS"):
		return "Standard Serial Port"
	default:
		return "Serial Port"
	}
}
