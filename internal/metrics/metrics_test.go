package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionOpened()
		m.MessageHandled("guess", "ok")
		m.DeliveryDropped()
		m.CollabCall("rules", "guess", "ok", time.Millisecond)
		m.SetBreakerState("rules", 2)
		m.RoomFinished("won")
	})
}

func TestCollectorsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.MessageHandled("guess", "ok")
	m.MessageHandled("guess", "ok")
	m.CollabCall("rules", "guess", "error", 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Connections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Messages.WithLabelValues("guess", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CollabRequests.WithLabelValues("rules", "guess", "error")))
}

func TestRoomGaugesReadStats(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.RegisterRoomGauges(reg, func() map[string]int {
		return map[string]int{"waiting": 3, "playing": 1}
	})

	families, err := reg.Gather()
	require.NoError(t, err)

	found := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "guessduel_rooms" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "status" {
					found[label.GetValue()] = metric.GetGauge().GetValue()
				}
			}
		}
	}
	assert.Equal(t, 3.0, found["waiting"])
	assert.Equal(t, 1.0, found["playing"])
	assert.Equal(t, 0.0, found["finished"])
}
