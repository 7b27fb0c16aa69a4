package serial

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// usbSettleTime is how long a reset device gets to re-enumerate.
var usbSettleTime = 2 * time.Second

// ResetUSBDevice performs a USB-level reset of the device behind portPath.
// This can recover an adapter that stopped answering exchanges.
//
// Requirements:
// - usbreset utility must be installed (from usbutils package)
// - Requires appropriate permissions (typically root/sudo)
//
// Returns:
// - nil if reset successful
// - ErrUSBResetNotAvailable if usbreset utility not found
// - ErrUSBInfoNotAvailable if device is not USB or metadata unavailable
// - error if reset fails
func ResetUSBDevice(ctx context.Context, portPath string) error {
	info, err := GetPortInfo(portPath)
	if err != nil {
		return fmt.Errorf("failed to get port info: %w", err)
	}

	usbPath, err := usbDevicePath(info.BusNumber, info.DeviceNumber)
	if err != nil {
		return err
	}

	if !IsUSBResetAvailable() {
		return ErrUSBResetNotAvailable
	}

	cmd := exec.CommandContext(ctx, "usbreset", usbPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("usbreset failed: %w (output: %s)", err, string(output))
	}

	// Wait for device to re-enumerate
	t := time.NewTimer(usbSettleTime)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ResetUSBDeviceBySerial resets a USB device by its serial number
// Useful when device paths change after reboot or when multiple devices are connected
func ResetUSBDeviceBySerial(ctx context.Context, serialNumber string) error {
	ports, err := Directory{Root: DefaultDeviceRoot}.List()
	if err != nil {
		return err
	}

	for _, portPath := range ports {
		info, err := GetPortInfo(portPath)
		if err != nil {
			continue
		}
		if info.SerialNumber == serialNumber {
			return ResetUSBDevice(ctx, portPath)
		}
	}

	return fmt.Errorf("%w: no device with serial %s", ErrDeviceNotFound, serialNumber)
}

// IsUSBResetAvailable checks if usbreset utility is available in PATH
func IsUSBResetAvailable() bool {
	_, err := exec.LookPath("usbreset")
	return err == nil
}

// usbDevicePath formats bus and device numbers as usbreset expects (BBB/DDD)
func usbDevicePath(bus, device string) (string, error) {
	b, errB := strconv.Atoi(bus)
	d, errD := strconv.Atoi(device)
	if errB != nil || errD != nil {
		return "", ErrUSBInfoNotAvailable
	}
	return fmt.Sprintf("%03d/%03d", b, d), nil
}
