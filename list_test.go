package serial

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Fatalf("ListPorts failed: %v", err)
	}
	if ports == nil {
		t.Fatal("ListPorts returned nil, expected empty slice")
	}

	for _, port := range ports {
		if _, _, ok := splitIdentifier(port); ok {
			continue
		}
		if !strings.HasPrefix(port, "/dev/") {
			t.Errorf("Port path doesn't start with /dev/: %s", port)
		}
		if !isCharacterDevice(port) {
			t.Errorf("Port is not a character device: %s", port)
		}
	}
}

func TestDirectoryList(t *testing.T) {
	root := t.TempDir()

	// /dev/null stands in for the character devices
	for _, name := range []string{"ttyUSB1", "ttyUSB0", "ttyACM0", "tty1", "console", "random"} {
		if err := os.Symlink("/dev/null", filepath.Join(root, name)); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}
	// Regular file with a serial name is not a device
	if err := os.WriteFile(filepath.Join(root, "ttyS0"), nil, 0644); err != nil {
		t.Fatalf("Failed to create ttyS0: %v", err)
	}

	ports, err := Directory{Root: root}.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	expected := []string{
		filepath.Join(root, "ttyACM0"),
		filepath.Join(root, "ttyUSB0"),
		filepath.Join(root, "ttyUSB1"),
	}
	if len(ports) != len(expected) {
		t.Fatalf("List() = %v, expected %v", ports, expected)
	}
	for i := range expected {
		if ports[i] != expected[i] {
			t.Errorf("ports[%d] = %s, expected %s", i, ports[i], expected[i])
		}
	}
}

func TestDirectoryListEmpty(t *testing.T) {
	ports, err := Directory{Root: t.TempDir()}.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if ports == nil || len(ports) != 0 {
		t.Errorf("List() = %#v, expected empty non-nil slice", ports)
	}
}

func TestDirectoryListMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "missing")
	_, err := Directory{Root: root}.List()

	var dirErr *DirectoryError
	if !errors.As(err, &dirErr) {
		t.Fatalf("Expected *DirectoryError, got %v", err)
	}
	if dirErr.Root != root {
		t.Errorf("DirectoryError.Root = %s, expected %s", dirErr.Root, root)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected error to wrap os.ErrNotExist, got %v", err)
	}
}

func TestDirectoryListIncludesDrivers(t *testing.T) {
	sim := NewSimulator()
	sim.Attach("B", Silence())
	sim.Attach("A", Silence())
	RegisterDriver("listtest", sim)
	t.Cleanup(func() { RegisterDriver("listtest", nil) })

	ports, err := Directory{Root: t.TempDir(), IncludeDrivers: true}.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	found := map[string]bool{}
	for _, p := range ports {
		found[p] = true
	}
	for _, id := range []string{"listtest://A", "listtest://B"} {
		if !found[id] {
			t.Errorf("List() = %v, missing %s", ports, id)
		}
	}
}

func TestIsCharacterDevice(t *testing.T) {
	tests := []struct {
		path     string
		expected bool
	}{
		{"/dev/null", true},
		{"/dev/zero", true},
		{"/tmp", false},
		{"/nonexistent", false},
	}

	for _, test := range tests {
		result := isCharacterDevice(test.path)
		if result != test.expected {
			t.Errorf("isCharacterDevice(%s) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestGetPortDescription(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"ttyUSB0", "USB Serial Port"},
		{"ttyACM0", "USB CDC/ACM Device"},
		{"ttyS0", "Standard Serial Port"},
		{"ttyAMA0", "ARM Serial Port"},
		{"ttymxc0", "i.MX Serial Port"},
		{"ttyO0", "OMAP Serial Port"},
		{"ttySAC0", "Samsung Serial Port"},
		{"ttyTHS0", "Tegra Serial Port"},
		{"unknown", "Serial Port"},
	}

	for _, test := range tests {
		result := getPortDescription(test.name)
		if result != test.expected {
			t.Errorf("getPortDescription(%s) = %s, expected %s", test.name, result, test.expected)
		}
	}
}

func TestGetPortInfo(t *testing.T) {
	info, err := GetPortInfo("/dev/null")
	if err != nil {
		t.Fatalf("GetPortInfo failed for /dev/null: %v", err)
	}
	if info.Name != "null" {
		t.Errorf("Expected name 'null', got '%s'", info.Name)
	}
	if info.Path != "/dev/null" {
		t.Errorf("Expected path '/dev/null', got '%s'", info.Path)
	}
	if info.Description == "" {
		t.Error("Description should not be empty")
	}

	_, err = GetPortInfo("/dev/nonexistent")
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
}

func TestGetPortInfoDriver(t *testing.T) {
	sim := NewSimulator()
	sim.Attach("meter", Silence())
	RegisterDriver("infotest", sim)
	t.Cleanup(func() { RegisterDriver("infotest", nil) })

	info, err := GetPortInfo("infotest://meter")
	if err != nil {
		t.Fatalf("GetPortInfo failed: %v", err)
	}
	if info.Name != "meter" || info.Description != "Infotest Port" {
		t.Errorf("GetPortInfo() = %+v", info)
	}

	if _, err := GetPortInfo("infotest://missing"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got %v", err)
	}
	if _, err := GetPortInfo("nosuch://x"); !errors.Is(err, ErrUnknownPort) {
		t.Errorf("Expected ErrUnknownPort, got %v", err)
	}
}

func TestIsSerialName(t *testing.T) {
	tests := []struct {
		name        string
		shouldMatch bool
	}{
		{"ttyUSB0", true},
		{"ttyUSB1", true},
		{"ttyACM0", true},
		{"ttyS0", true},
		{"ttyAMA0", true},
		{"ttyTHS2", true},
		{"tty1", false},
		{"tty2", false},
		{"console", false},
		{"ptmx", false},
		{"ptyp0", false},
		{"random", false},
		{"urandom", false},
	}

	for _, tt := range tests {
		if got := isSerialName(tt.name); got != tt.shouldMatch {
			t.Errorf("isSerialName(%s) = %v, expected %v", tt.name, got, tt.shouldMatch)
		}
	}
}

// BenchmarkListPorts benchmarks the ListPorts function
func BenchmarkListPorts(b *testing.B) {
	for i := 0; i < b.N; i++ {
		if _, err := ListPorts(); err != nil {
			b.Errorf("ListPorts failed: %v", err)
		}
	}
}

// TestListPortsIntegration is an integration test that requires actual system
func TestListPortsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ports, err := Directory{Root: DefaultDeviceRoot}.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}

	t.Logf("Found %d serial ports:", len(ports))
	for i, port := range ports {
		info, err := GetPortInfo(port)
		if err != nil {
			t.Logf("  %d. %s (error getting info: %v)", i+1, port, err)
		} else {
			t.Logf("  %d. %s (%s)", i+1, port, info.Description)
		}
	}
}
