package serial

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecordExchanges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ex := newExchanger(t, WithMetrics(m), WithRetry(2, time.Millisecond))
	ok := simPort(t, SimDevice{Respond: Reply("OK\n")})
	silent := simPort(t, SimDevice{Respond: Silence()})

	_, err = ex.Exchange(context.Background(), ok, []byte("A\n"))
	require.NoError(t, err)
	_, err = ex.Exchange(context.Background(), ok, []byte("B\n"))
	require.NoError(t, err)
	_, err = ex.Exchange(context.Background(), silent, []byte("C\n"))
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.exchanges.WithLabelValues("complete")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exchanges.WithLabelValues("no_response")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.attempts))

	expected := `
# HELP serialx_exchange_attempts Read attempts made per exchange.
# TYPE serialx_exchange_attempts histogram
serialx_exchange_attempts_bucket{le="1"} 2
serialx_exchange_attempts_bucket{le="2"} 3
serialx_exchange_attempts_bucket{le="3"} 3
serialx_exchange_attempts_bucket{le="5"} 3
serialx_exchange_attempts_bucket{le="8"} 3
serialx_exchange_attempts_bucket{le="10"} 3
serialx_exchange_attempts_bucket{le="15"} 3
serialx_exchange_attempts_bucket{le="20"} 3
serialx_exchange_attempts_bucket{le="50"} 3
serialx_exchange_attempts_bucket{le="+Inf"} 3
serialx_exchange_attempts_sum 4
serialx_exchange_attempts_count 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "serialx_exchange_attempts"))
}

func TestMetricsOpenFailures(t *testing.T) {
	m, err := NewMetrics(nil)
	require.NoError(t, err)

	_, err = Open("/dev/nonexistent")
	m.ObserveOpenFailure(err)
	_, err = Open("nosuch://x")
	m.ObserveOpenFailure(err)
	m.ObserveOpenFailure(nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.openFailures.WithLabelValues("not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.openFailures.WithLabelValues("unknown_scheme")))
}

func TestMetricsDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewMetrics(reg)
	require.NoError(t, err)
	_, err = NewMetrics(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.observeExchange(&Response{})
	m.ObserveOpenFailure(ErrDeviceInUse)
}
