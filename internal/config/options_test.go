package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/graphql-ws-go/internal/idgen"
)

func TestOptions_Defaults(t *testing.T) {
	var o Options

	require.Equal(t, DefaultHandshakeTimeout, o.HandshakeTimeoutOrDefault())
	require.Equal(t, DefaultStopTimeout, o.StopTimeoutOrDefault())
	require.Equal(t, DefaultWriteTimeout, o.WriteTimeoutOrDefault())
	require.Equal(t, DefaultDialTimeout, o.DialTimeoutOrDefault())
	require.Equal(t, "gqlws", o.MetricsNamespaceOrDefault())
	require.Len(t, o.IDs().Generate(), idgen.DefaultSize)
}

func TestOptions_Overrides(t *testing.T) {
	o := Options{
		HandshakeTimeout: time.Second,
		StopTimeout:      2 * time.Second,
		WriteTimeout:     3 * time.Second,
		DialTimeout:      4 * time.Second,
		MetricsNamespace: "api",
		IDSize:           10,
	}

	require.Equal(t, time.Second, o.HandshakeTimeoutOrDefault())
	require.Equal(t, 2*time.Second, o.StopTimeoutOrDefault())
	require.Equal(t, 3*time.Second, o.WriteTimeoutOrDefault())
	require.Equal(t, 4*time.Second, o.DialTimeoutOrDefault())
	require.Equal(t, "api", o.MetricsNamespaceOrDefault())
	require.Len(t, o.IDs().Generate(), 10)
}

func TestOptions_IDGeneratorWinsOverSize(t *testing.T) {
	o := Options{
		IDSize:      10,
		IDGenerator: idgen.GeneratorFunc(func() string { return "fixed" }),
	}

	require.Equal(t, "fixed", o.IDs().Generate())
}
