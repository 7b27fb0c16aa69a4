package serial

import (
	"os"
	"path/filepath"
	"strings"
)

// sysfsRoot is replaced in tests.
var sysfsRoot = "/sys"

// enrichUSBInfo fills the USB fields of info from sysfs. Missing files leave
// the fields empty.
//
// /sys/class/tty/<name>/device resolves to the interface's tty directory;
// its parent is the USB interface and the grandparent the USB device.
func enrichUSBInfo(info *PortInfo) {
	link := filepath.Join(sysfsRoot, "class", "tty", info.Name, "device")
	resolved, err := filepath.EvalSymlinks(link)
	if err != nil {
		return
	}

	iface := filepath.Dir(resolved)
	// ttyACM links point at the interface itself
	if readSysfsFile(filepath.Join(resolved, "bInterfaceNumber")) != "" {
		iface = resolved
	}
	info.InterfaceNumber = readSysfsFile(filepath.Join(iface, "bInterfaceNumber"))

	dev := filepath.Dir(iface)
	info.VendorID = readSysfsFile(filepath.Join(dev, "idVendor"))
	info.ProductID = readSysfsFile(filepath.Join(dev, "idProduct"))
	info.SerialNumber = readSysfsFile(filepath.Join(dev, "serial"))
	info.Manufacturer = readSysfsFile(filepath.Join(dev, "manufacturer"))
	info.Product = readSysfsFile(filepath.Join(dev, "product"))
	info.BusNumber = readSysfsFile(filepath.Join(dev, "busnum"))
	info.DeviceNumber = readSysfsFile(filepath.Join(dev, "devnum"))
}

// readSysfsFile returns the trimmed content of a sysfs attribute, or "".
func readSysfsFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
