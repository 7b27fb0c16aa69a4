package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serial "github.com/allbin/go-serial-exchange"
	"github.com/allbin/go-serial-exchange/internal/config"
	"github.com/allbin/go-serial-exchange/internal/script"
)

func TestBuildPayload(t *testing.T) {
	p, err := buildPayload("AT+VER", false, "\r\n")
	require.NoError(t, err)
	assert.Equal(t, []byte("AT+VER\r\n"), p)

	p, err = buildPayload("0x02, 0x06 00", true, "\r\n")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x06, 0x00}, p)

	_, err = buildPayload("", false, "\n")
	assert.Error(t, err)
	_, err = buildPayload("abc", true, "\n")
	assert.Error(t, err)
}

func TestAttachSimulated(t *testing.T) {
	t.Cleanup(func() {
		serial.DefaultSimulator.Detach("cmd-meter")
		serial.DefaultSimulator.Detach("cmd-quiet")
	})
	require.NoError(t, attachSimulated([]string{`cmd-meter=PONG\n`, "cmd-quiet="}))
	assert.Error(t, attachSimulated([]string{"=x"}))

	ex, err := serial.NewExchanger(serial.WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	resp, err := exchangeOnce(context.Background(), ex, "simulated://cmd-meter", []byte("PING\n"))
	require.NoError(t, err)
	assert.Equal(t, "PONG\n", resp.Text)
	assert.Equal(t, serial.OutcomeComplete, resp.Outcome)

	resp, err = exchangeOnce(context.Background(), ex, "simulated://cmd-quiet", []byte("PING\n"))
	assert.ErrorIs(t, err, serial.ErrNoResponse)
	require.NotNil(t, resp)
	assert.Equal(t, 2, resp.Attempts)

	out := newExchangeOutput([]byte("PING\n"), resp, err)
	assert.Equal(t, "no_response", out.Outcome)
	assert.Equal(t, "no response", out.Error)

	resp, err = exchangeOnce(context.Background(), ex, "simulated://cmd-missing", []byte("PING\n"))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, serial.ErrDeviceNotFound)
}

func TestRunScript(t *testing.T) {
	cfg = config.Default()
	serial.DefaultSimulator.Attach("cmd-run-a", serial.Reply("VER 1.0\r\n"))
	serial.DefaultSimulator.Attach("cmd-run-b", serial.Silence())
	t.Cleanup(func() {
		serial.DefaultSimulator.Detach("cmd-run-a")
		serial.DefaultSimulator.Detach("cmd-run-b")
	})

	s, err := script.Parse(`
name = "smoke"

[[steps]]
description = "identify"
[[steps.commands]]
command = "AT+VER"
read_after = true
expect = "VER"
`)
	require.NoError(t, err)

	ex, err := serial.NewExchanger(serial.WithRetry(2, time.Millisecond))
	require.NoError(t, err)

	reports, err := runScript(context.Background(), s, []string{"simulated://cmd-run-a", "simulated://cmd-run-b"}, ex)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.True(t, reports[0].Passed)
	assert.False(t, reports[1].Passed)
	assert.Equal(t, reports[0].RunID, reports[1].RunID)

	var buf bytes.Buffer
	printReports(&buf, reports)
	assert.Contains(t, buf.String(), "simulated://cmd-run-a")
	assert.Contains(t, buf.String(), "no_response")

	path := filepath.Join(t.TempDir(), "report.json")
	require.NoError(t, script.SaveReports(path, reports))
	loaded, err := script.LoadReports(path)
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

func TestGetPortType(t *testing.T) {
	assert.Equal(t, "USB Serial", getPortType(&serial.PortInfo{Name: "ttyUSB0", Path: "/dev/ttyUSB0"}))
	assert.Equal(t, "Standard Serial", getPortType(&serial.PortInfo{Name: "ttyS0", Path: "/dev/ttyS0"}))
	assert.Equal(t, "Simulated", getPortType(&serial.PortInfo{Name: "a", Path: "simulated://a"}))
}
