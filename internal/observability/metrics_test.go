package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.RecordLogin(OutcomeSuccess)
	m.RecordLogin(OutcomeSuccess)
	m.RecordLogin(OutcomeBadCredential)
	m.RecordRefresh(OutcomeInvalid)
	m.RecordError("CONFLICT")
	m.RecordRequest("/auth/login", "POST", 200, 5*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.logins.WithLabelValues(OutcomeBadCredential)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.refreshes.WithLabelValues(OutcomeInvalid)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors.WithLabelValues("CONFLICT")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("POST", "/auth/login", "200")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLogin(OutcomeSuccess)
		m.RecordRefresh(OutcomeSuccess)
		m.RecordError("X")
		m.RecordRequest("/", "GET", 200, time.Millisecond)
	})
}
