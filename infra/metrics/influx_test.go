package metrics

import (
	"testing"

	"github.com/stretchr/testify/require"

	coremetrics "github.com/wattplan/wattplan/core/metrics"
)

func TestRound3(t *testing.T) {
	require.Equal(t, 1.235, round3(1.23456))
	require.Equal(t, -0.5, round3(-0.4999))
	require.Equal(t, 0.0, round3(0))
}

func TestInfluxFallbackToNop(t *testing.T) {
	cfg := coremetrics.Config{
		InfluxEnabled: true,
		InfluxURL:     "http://127.0.0.1:1",
		InfluxOrg:     "org",
		InfluxBucket:  "bucket",
	}
	sink := NewInfluxSinkWithFallback(cfg)
	_, ok := sink.(coremetrics.NopSink)
	require.True(t, ok, "unreachable InfluxDB must fall back to the nop sink, got %T", sink)
}

func TestInfluxURLTrimmed(t *testing.T) {
	cfg := coremetrics.Config{InfluxURL: "http://localhost:8086/api/v2/write"}
	sink := NewInfluxSink(cfg)
	defer func() { require.NoError(t, sink.Close()) }()
	require.Equal(t, "http://localhost:8086", sink.client.ServerURL())
}
