package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordNotification(t *testing.T) {
	sent := testutil.ToFloat64(NotificationsTotal.WithLabelValues("brand_restock", "sent"))
	failed := testutil.ToFloat64(NotificationsTotal.WithLabelValues("brand_restock", "failed"))

	RecordNotification("brand_restock", nil)
	RecordNotification("brand_restock", errors.New("smtp down"))
	RecordNotification("brand_restock", nil)

	assert.Equal(t, sent+2, testutil.ToFloat64(NotificationsTotal.WithLabelValues("brand_restock", "sent")))
	assert.Equal(t, failed+1, testutil.ToFloat64(NotificationsTotal.WithLabelValues("brand_restock", "failed")))
}

func TestRecordCycle_CountsFailuresOnly(t *testing.T) {
	before := testutil.ToFloat64(CycleFailures.WithLabelValues("sazen-tea"))
	RecordCycle("sazen-tea", 1.5, nil)
	RecordCycle("sazen-tea", 2, errors.New("strategy missing"))
	assert.Equal(t, before+1, testutil.ToFloat64(CycleFailures.WithLabelValues("sazen-tea")))
}

func TestRecordAppend(t *testing.T) {
	before := testutil.ToFloat64(LedgerAppends.WithLabelValues("ippodo-tea", "true"))
	RecordAppend("ippodo-tea", true)
	assert.Equal(t, before+1, testutil.ToFloat64(LedgerAppends.WithLabelValues("ippodo-tea", "true")))
}
