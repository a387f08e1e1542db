package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveAdmission(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAdmission("single", OutcomeAdmitted, 300)
	m.ObserveAdmission("single", OutcomeAdmitted, 150)
	m.ObserveAdmission("single", OutcomeInsufficientFunds, 300)
	m.ObserveAdmission("weekly", OutcomeReplayed, 900)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.admissions.WithLabelValues("single", OutcomeAdmitted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.admissions.WithLabelValues("single", OutcomeInsufficientFunds)))
	assert.Equal(t, 450.0, testutil.ToFloat64(m.admittedAmount.WithLabelValues("single")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.admittedAmount.WithLabelValues("weekly")))
}

func TestObserveTxRetry(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTxRetry(errors.New("version conflict"), 20*time.Millisecond)
	m.ObserveTxRetry(errors.New("version conflict"), 40*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.txRetries))
}

func TestRegisterOutboxBacklog(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	pending := 7
	m.RegisterOutboxBacklog(func(context.Context) (int, error) { return pending, nil })

	families, err := reg.Gather()
	assert.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "canteen_outbox_pending_events" {
			found = true
			assert.Equal(t, 7.0, f.GetMetric()[0].GetGauge().GetValue())
		}
	}
	assert.True(t, found)
}

func TestObserveRequest(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("POST", "POST /api/v1/orders", 201, 15*time.Millisecond)
	m.ObserveRequest("POST", "POST /api/v1/orders", 422, 5*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(m.httpDuration))
}
