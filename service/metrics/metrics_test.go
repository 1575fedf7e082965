package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordDBQuery(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordDBQuery("record_execution", 0.01, nil)
	m.RecordDBQuery("record_execution", 0.02, errors.New("connection reset"))

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("record_execution", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.dbOperationsTotal.WithLabelValues("record_execution", "error")))
}

func TestRecordNATSPublish(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordNATSPublish("agent.txns.s1", "success", 0.001)
	m.RecordNATSPublish("agent.txns.s1", "error", 0.002)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.natsMessagesPublished.WithLabelValues("agent.txns.s1", "success")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(m.natsMessagesPublished.WithLabelValues("agent.txns.s1", "error")))
}
