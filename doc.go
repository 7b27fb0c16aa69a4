// Package serial exchanges framed request/response messages over serial
// lines on Linux.
//
// A request is written once; the response is read in as many pieces as the
// line delivers until a terminator byte (newline by default) arrives or a
// bounded retry budget runs out.
//
// # Basic Usage
//
//	ports, err := serial.ListPorts()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	port, err := serial.OpenPort(ports[0], 9600)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer port.Close()
//
//	reply, err := serial.Exchange(ctx, port, "PING\n")
//
// # Exchange Options
//
// An Exchanger carries the retry budget, terminator and decoding:
//
//	ex, err := serial.NewExchanger(
//	    serial.WithRetry(20, 50*time.Millisecond),
//	    serial.WithTerminator('\r'),
//	    serial.WithLogger(logger),
//	)
//	resp, err := ex.Exchange(ctx, port, []byte("*IDN?\r"))
//	fmt.Println(resp.Outcome, resp.Attempts, resp.Text)
//
// The Response is returned on failure too and holds whatever arrived.
// Failures are *WriteError, *ReadError and *NoResponseError; the latter
// matches ErrNoResponse with errors.Is.
//
// # Identifiers
//
// Device paths open terminal devices. Identifiers of the form scheme://name
// are served by registered drivers; the simulated driver answers scripted
// replies:
//
//	serial.DefaultSimulator.Attach("meter", serial.Reply("PONG\n"))
//	port, err := serial.Open("simulated://meter")
//
// # Sharing Ports
//
// A Port has one owner. Pool keeps ports open across exchanges, serializes
// use of each one and runs batches over distinct ports concurrently.
//
// # USB Device Management
//
// ResetUSBDevice and ResetUSBDeviceBySerial recover hung USB adapters using
// the usbreset utility from usbutils; they need root permissions.
package serial
