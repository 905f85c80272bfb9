package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vsinha/needslist/pkg/domain/entities"
	"github.com/vsinha/needslist/pkg/infrastructure/events"
)

func TestRecorder_CountsPublishedEvents(t *testing.T) {
	store := events.NewInMemoryEventStore(zerolog.Nop())
	require.NoError(t, NewRecorder().Attach(store))

	before := testutil.ToFloat64(TransitionTotal.WithLabelValues("submit", string(entities.StatusSubmitted)))
	created := testutil.ToFloat64(NeedsListCreatedTotal.WithLabelValues("SURGE"))
	blocked := testutil.ToFloat64(ScopeConflictTotal.WithLabelValues("blocked"))
	denied := testutil.ToFloat64(OperationDeniedTotal.WithLabelValues("approve", "separation_of_duties"))

	at := time.Now()
	require.NoError(t, store.Publish(events.NewEvent(events.NeedsListCreatedEvent, "NL1",
		events.NeedsListCreated{NeedsListID: "NL1", Phase: entities.PhaseSurge}, at)))
	require.NoError(t, store.Publish(events.NewEvent(events.NeedsListTransitionedEvent, "NL1",
		events.NeedsListTransitioned{NeedsListID: "NL1", Operation: "submit", To: entities.StatusSubmitted}, at)))
	require.NoError(t, store.Publish(events.NewEvent(events.ScopeConflictEvent, "EV1",
		events.ScopeConflict{EventID: "EV1"}, at)))
	require.NoError(t, store.Publish(events.NewEvent(events.OperationDeniedEvent, "NL1",
		events.OperationDenied{NeedsListID: "NL1", Operation: "approve", Reason: "separation_of_duties"}, at)))

	assert.Equal(t, before+1, testutil.ToFloat64(TransitionTotal.WithLabelValues("submit", string(entities.StatusSubmitted))))
	assert.Equal(t, created+1, testutil.ToFloat64(NeedsListCreatedTotal.WithLabelValues("SURGE")))
	assert.Equal(t, blocked+1, testutil.ToFloat64(ScopeConflictTotal.WithLabelValues("blocked")))
	assert.Equal(t, denied+1, testutil.ToFloat64(OperationDeniedTotal.WithLabelValues("approve", "separation_of_duties")))
}

func TestRecorder_CanHandle(t *testing.T) {
	r := NewRecorder()
	assert.True(t, r.CanHandle(events.LineOverriddenEvent))
	assert.False(t, r.CanHandle("mrp.completed"))
}

func TestWriteTextfile(t *testing.T) {
	RecordTransition("approve", string(entities.StatusApproved))
	path := filepath.Join(t.TempDir(), "needslist.prom")

	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# TYPE needslist_transition_total counter")
	assert.Contains(t, string(data), `needslist_transition_total{operation="approve",to="APPROVED"}`)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var transitions *dto.MetricFamily
	for _, mf := range families {
		if mf.GetName() == "needslist_transition_total" {
			transitions = mf
		}
	}
	require.NotNil(t, transitions)
	assert.Equal(t, dto.MetricType_COUNTER, transitions.GetType())
}
