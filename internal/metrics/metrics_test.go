package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RecordsJobsCreated(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("test_gateway", reg)

	m.JobsCreatedTotal.WithLabelValues("tenant-a").Inc()
	m.JobsCreatedTotal.WithLabelValues("tenant-a").Inc()

	metric := &dto.Metric{}
	require.NoError(t, m.JobsCreatedTotal.WithLabelValues("tenant-a").Write(metric))
	assert.Equal(t, float64(2), metric.GetCounter().GetValue())
}

func TestNew_NamesAreNamespacedByPrefix(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("myprefix", reg)
	m.QueueBacklog.WithLabelValues("default").Set(3)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if f.GetName() == "myprefix_queue_backlog" {
			found = true
		}
	}
	assert.True(t, found)
}
