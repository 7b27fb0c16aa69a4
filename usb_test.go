package serial

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// TestReadSysfsFile tests the sysfs file reading helper
func TestReadSysfsFile(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		expected string
		setup    func(string) error
	}{
		{
			name:     "normal file",
			expected: "1234",
			setup: func(path string) error {
				return os.WriteFile(path, []byte("1234\n"), 0644)
			},
		},
		{
			name:     "file with spaces",
			expected: "test value",
			setup: func(path string) error {
				return os.WriteFile(path, []byte("  test value  \n"), 0644)
			},
		},
		{
			name:     "nonexistent file",
			expected: "",
			setup:    func(path string) error { return nil },
		},
		{
			name:     "empty file",
			expected: "",
			setup: func(path string) error {
				return os.WriteFile(path, []byte(""), 0644)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testFile := filepath.Join(tmpDir, tt.name)
			if err := tt.setup(testFile); err != nil {
				t.Fatalf("Setup failed: %v", err)
			}

			result := readSysfsFile(testFile)
			if result != tt.expected {
				t.Errorf("readSysfsFile() = %q, expected %q", result, tt.expected)
			}
		})
	}
}

// fakeSysfs builds class/tty/ttyUSB0/device pointing into a USB device tree
func fakeSysfs(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	devicePath := filepath.Join(root, "devices", "usb5", "5-2.3.1")
	interfacePath := filepath.Join(devicePath, "5-2.3.1:1.0")
	ttyPath := filepath.Join(interfacePath, "ttyUSB0")
	classTtyPath := filepath.Join(root, "class", "tty", "ttyUSB0")

	for _, dir := range []string{ttyPath, classTtyPath} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", dir, err)
		}
	}

	deviceFiles := map[string]string{
		"idVendor":     "0403",
		"idProduct":    "6010",
		"serial":       "FT123456",
		"manufacturer": "FTDI",
		"product":      "FT2232C Dual USB-UART",
		"busnum":       "5",
		"devnum":       "7",
	}
	for filename, content := range deviceFiles {
		if err := os.WriteFile(filepath.Join(devicePath, filename), []byte(content+"\n"), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", filename, err)
		}
	}
	if err := os.WriteFile(filepath.Join(interfacePath, "bInterfaceNumber"), []byte("00\n"), 0644); err != nil {
		t.Fatalf("Failed to write interface number: %v", err)
	}
	if err := os.Symlink(ttyPath, filepath.Join(classTtyPath, "device")); err != nil {
		t.Fatalf("Failed to create symlink: %v", err)
	}
	return root
}

func withSysfsRoot(t *testing.T, root string) {
	t.Helper()
	old := sysfsRoot
	sysfsRoot = root
	t.Cleanup(func() { sysfsRoot = old })
}

// TestEnrichUSBInfo tests USB metadata extraction with a mock sysfs structure
func TestEnrichUSBInfo(t *testing.T) {
	withSysfsRoot(t, fakeSysfs(t))

	info := &PortInfo{Name: "ttyUSB0", Path: "/dev/ttyUSB0"}
	enrichUSBInfo(info)

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"VendorID", info.VendorID, "0403"},
		{"ProductID", info.ProductID, "6010"},
		{"SerialNumber", info.SerialNumber, "FT123456"},
		{"InterfaceNumber", info.InterfaceNumber, "00"},
		{"BusNumber", info.BusNumber, "5"},
		{"DeviceNumber", info.DeviceNumber, "7"},
		{"Manufacturer", info.Manufacturer, "FTDI"},
		{"Product", info.Product, "FT2232C Dual USB-UART"},
	}

	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("%s = %q, expected %q", tt.name, tt.got, tt.expected)
		}
	}
}

// TestEnrichUSBInfoGracefulFailure tests that enrichUSBInfo handles missing files gracefully
func TestEnrichUSBInfoGracefulFailure(t *testing.T) {
	withSysfsRoot(t, t.TempDir())

	info := &PortInfo{Name: "ttyUSB999", Path: "/dev/ttyUSB999"}
	enrichUSBInfo(info)

	if info.VendorID != "" || info.ProductID != "" || info.SerialNumber != "" {
		t.Errorf("USB fields should be empty, got %+v", info)
	}
}

func TestUSBDevicePath(t *testing.T) {
	tests := []struct {
		bus      string
		device   string
		expected string
		wantErr  bool
	}{
		{"5", "7", "005/007", false},
		{"1", "2", "001/002", false},
		{"123", "456", "123/456", false},
		{"1", "10", "001/010", false},
		{"", "7", "", true},
		{"5", "x", "", true},
	}

	for _, tt := range tests {
		got, err := usbDevicePath(tt.bus, tt.device)
		if tt.wantErr {
			if !errors.Is(err, ErrUSBInfoNotAvailable) {
				t.Errorf("usbDevicePath(%q, %q) error = %v, expected ErrUSBInfoNotAvailable", tt.bus, tt.device, err)
			}
			continue
		}
		if err != nil || got != tt.expected {
			t.Errorf("usbDevicePath(%q, %q) = %q, %v, expected %q", tt.bus, tt.device, got, err, tt.expected)
		}
	}
}

// TestResetUSBDeviceBySerialNotFound tests error handling when device not found
func TestResetUSBDeviceBySerialNotFound(t *testing.T) {
	err := ResetUSBDeviceBySerial(context.Background(), "NONEXISTENT_SERIAL")
	if err == nil {
		t.Fatal("Expected error for nonexistent serial number")
	}
	if !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Expected ErrDeviceNotFound, got: %v", err)
	}
}

func TestResetUSBDeviceNotUSB(t *testing.T) {
	err := ResetUSBDevice(context.Background(), "/dev/null")
	if !errors.Is(err, ErrUSBInfoNotAvailable) {
		t.Errorf("Expected ErrUSBInfoNotAvailable, got: %v", err)
	}
}

func TestIsUSBResetAvailable(t *testing.T) {
	t.Logf("usbreset available: %v", IsUSBResetAvailable())
}
