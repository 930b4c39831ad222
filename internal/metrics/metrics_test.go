package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordRemoteCall(t *testing.T) {
	before := testutil.ToFloat64(RemoteCalls.WithLabelValues("delete", "unauthorized"))

	RecordRemoteCall("delete", "unauthorized", 20*time.Millisecond)

	after := testutil.ToFloat64(RemoteCalls.WithLabelValues("delete", "unauthorized"))
	assert.Equal(t, before+1, after)
}

func TestSetQueueSize(t *testing.T) {
	SetQueueSize(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(QueueSize))
}

func TestRecordDelivered(t *testing.T) {
	before := testutil.ToFloat64(NotificationsDelivered)
	RecordDelivered()
	assert.Equal(t, before+1, testutil.ToFloat64(NotificationsDelivered))
}
