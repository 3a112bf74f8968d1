package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRecordsLessonUpserts(t *testing.T) {
	r := New()
	r.RecordLessonUpsert("shell", "created")
	r.RecordLessonUpsert("shell", "created")
	r.RecordLessonUpsert("shell", "merged")

	assert.Equal(t, float64(2), testutil.ToFloat64(r.LessonUpserts.WithLabelValues("shell", "created")))
	assert.Equal(t, float64(1), testutil.ToFloat64(r.LessonUpserts.WithLabelValues("shell", "merged")))
}

func TestRegistryRecordsSessionOutcome(t *testing.T) {
	r := New()
	r.RecordSessionOutcome("shell", "budget", 5, 2*time.Second)

	assert.Equal(t, float64(1), testutil.ToFloat64(r.SessionOutcomes.WithLabelValues("shell", "budget")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.SessionSteps))
}

func TestRegistryHandlerServesPrometheusFormat(t *testing.T) {
	r := New()
	r.RecordLessonUpsert("shell", "created")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "memv2_lesson_upserts_total")
}

func TestRegistryIsolatedPerInstance(t *testing.T) {
	a := New()
	b := New()
	a.RecordLessonUpsert("shell", "created")

	assert.Equal(t, float64(1), testutil.ToFloat64(a.LessonUpserts.WithLabelValues("shell", "created")))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.LessonUpserts.WithLabelValues("shell", "created")))
}
