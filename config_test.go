package serial

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.BaudRate != 9600 {
		t.Errorf("Expected BaudRate 9600, got %d", config.BaudRate)
	}
	if config.DataBits != 8 {
		t.Errorf("Expected DataBits 8, got %d", config.DataBits)
	}
	if config.StopBits != 1 {
		t.Errorf("Expected StopBits 1, got %d", config.StopBits)
	}
	if config.Parity != ParityNone {
		t.Errorf("Expected Parity None, got %v", config.Parity)
	}
	if config.ReadTimeout != 100*time.Millisecond {
		t.Errorf("Expected ReadTimeout 100ms, got %v", config.ReadTimeout)
	}
	if !config.Exclusive {
		t.Error("Expected Exclusive to be on by default")
	}
}

func TestFunctionalOptions(t *testing.T) {
	config, err := applyOptions([]Option{
		WithBaudRate(115200),
		WithDataBits(7),
		WithStopBits(2),
		WithParity(ParityEven),
		WithSyncWrite(),
		WithExclusive(false),
	})
	if err != nil {
		t.Fatalf("applyOptions failed: %v", err)
	}

	if config.BaudRate != 115200 {
		t.Errorf("Expected BaudRate 115200, got %d", config.BaudRate)
	}
	if config.DataBits != 7 {
		t.Errorf("Expected DataBits 7, got %d", config.DataBits)
	}
	if config.StopBits != 2 {
		t.Errorf("Expected StopBits 2, got %d", config.StopBits)
	}
	if config.Parity != ParityEven {
		t.Errorf("Expected Parity Even, got %v", config.Parity)
	}
	if config.WriteMode != WriteModeSynced {
		t.Errorf("Expected WriteModeSynced, got %v", config.WriteMode)
	}
	if config.Exclusive {
		t.Error("Expected Exclusive false")
	}
}

func TestInvalidOptions(t *testing.T) {
	tests := []struct {
		name    string
		opt     Option
		wantErr error
	}{
		{"baud rate", WithBaudRate(123456), ErrInvalidBaudRate},
		{"data bits", WithDataBits(9), ErrInvalidConfig},
		{"stop bits", WithStopBits(3), ErrInvalidConfig},
		{"parity", WithParity(Parity(42)), ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := tt.opt(&config)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestWithReadTimeout(t *testing.T) {
	tests := []struct {
		name    string
		timeout time.Duration
		tenths  uint8
		wantErr bool
	}{
		{"0ms (non-blocking)", 0, 0, false},
		{"100ms (valid)", 100 * time.Millisecond, 1, false},
		{"500ms (valid)", 500 * time.Millisecond, 5, false},
		{"2500ms (valid)", 2500 * time.Millisecond, 25, false},
		{"25500ms (max)", 25500 * time.Millisecond, 255, false},
		{"150ms (not multiple of 100ms)", 150 * time.Millisecond, 0, true},
		{"250ns (not multiple of 100ms)", 250 * time.Nanosecond, 0, true},
		{"25600ms (exceeds max)", 25600 * time.Millisecond, 0, true},
		{"-100ms (negative)", -100 * time.Millisecond, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			err := WithReadTimeout(tt.timeout)(&config)
			if (err != nil) != tt.wantErr {
				t.Errorf("WithReadTimeout(%v) error = %v, wantErr %v", tt.timeout, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if config.ReadTimeout != tt.timeout {
				t.Errorf("ReadTimeout = %v, want %v", config.ReadTimeout, tt.timeout)
			}
			if got := config.readTimeoutTenths(); got != tt.tenths {
				t.Errorf("readTimeoutTenths() = %d, want %d", got, tt.tenths)
			}
		})
	}
}

func TestParseParity(t *testing.T) {
	tests := []struct {
		input    string
		expected Parity
		wantErr  bool
	}{
		{"", ParityNone, false},
		{"none", ParityNone, false},
		{"N", ParityNone, false},
		{"odd", ParityOdd, false},
		{"E", ParityEven, false},
		{"mark", ParityMark, false},
		{"space", ParitySpace, false},
		{"bogus", ParityNone, true},
	}

	for _, tt := range tests {
		got, err := ParseParity(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseParity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseParity(%q) = %v, expected %v", tt.input, got, tt.expected)
		}
	}
}
