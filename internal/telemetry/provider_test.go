package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResource(t *testing.T) {
	cfg := NewDefaultConfig()

	res, err := newResource(cfg)
	require.NoError(t, err)
	require.NotNil(t, res)

	var found bool
	for _, attr := range res.Attributes() {
		if string(attr.Key) == "service.name" {
			assert.Equal(t, cfg.ServiceName, attr.Value.AsString())
			found = true
		}
	}
	assert.True(t, found, "service.name attribute not found")
}

func TestNewMeterProvider_DisabledMetrics(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Metrics.Enabled = false

	mp, err := newMeterProvider(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Nil(t, mp)
}

func TestNewProviders_BothProtocols(t *testing.T) {
	for _, protocol := range []string{ProtocolGRPC, ProtocolHTTP} {
		t.Run(protocol, func(t *testing.T) {
			cfg := NewDefaultConfig()
			cfg.Enabled = true
			cfg.Protocol = protocol
			res, err := newResource(cfg)
			require.NoError(t, err)

			// Exporters connect lazily, so construction succeeds without a collector.
			tp, err := newTracerProvider(context.Background(), cfg, res)
			require.NoError(t, err)
			mp, err := newMeterProvider(context.Background(), cfg, res)
			require.NoError(t, err)

			ctx, cancel := context.WithTimeout(context.Background(), 0)
			defer cancel()
			_ = tp.Shutdown(ctx)
			_ = mp.Shutdown(ctx)
		})
	}
}

func TestStripScheme(t *testing.T) {
	assert.Equal(t, "collector:4318", stripScheme("https://collector:4318"))
	assert.Equal(t, "collector:4318", stripScheme("http://collector:4318"))
	assert.Equal(t, "collector:4317", stripScheme("collector:4317"))
}
