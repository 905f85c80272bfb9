package events

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	types  map[string]bool
	seen   []Event
	failed bool
}

func (h *recordingHandler) CanHandle(eventType string) bool { return h.types[eventType] }

func (h *recordingHandler) Handle(event Event) error {
	h.seen = append(h.seen, event)
	if h.failed {
		return errors.New("handler failure")
	}
	return nil
}

func TestInMemoryEventStore_PublishAndRead(t *testing.T) {
	store := NewInMemoryEventStore(zerolog.Nop())
	at := time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, store.Publish(NewEvent(NeedsListCreatedEvent, "NL1", NeedsListCreated{NeedsListID: "NL1"}, at)))
	require.NoError(t, store.Publish(NewEvent(NeedsListTransitionedEvent, "NL1", NeedsListTransitioned{NeedsListID: "NL1"}, at)))
	require.NoError(t, store.Publish(NewEvent(NeedsListCreatedEvent, "NL2", NeedsListCreated{NeedsListID: "NL2"}, at)))

	stream, err := store.ReadEvents("NL1", 0)
	require.NoError(t, err)
	require.Len(t, stream, 2)
	assert.Equal(t, 1, stream[0].Version())
	assert.Equal(t, 2, stream[1].Version())

	later, err := store.ReadEvents("NL1", 2)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, NeedsListTransitionedEvent, later[0].Type())

	all, err := store.ReadAllEvents(1)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := store.ReadEvents("missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestInMemoryEventStore_SubscribersAreCalledSynchronously(t *testing.T) {
	store := NewInMemoryEventStore(zerolog.Nop())
	handler := &recordingHandler{types: map[string]bool{NeedsListTransitionedEvent: true}}
	failing := &recordingHandler{types: map[string]bool{NeedsListTransitionedEvent: true}, failed: true}
	require.NoError(t, store.Subscribe([]string{NeedsListTransitionedEvent}, failing))
	require.NoError(t, store.Subscribe([]string{NeedsListTransitionedEvent}, handler))

	require.NoError(t, store.Publish(NewEvent(NeedsListTransitionedEvent, "NL1", nil, time.Now())))
	require.NoError(t, store.Publish(NewEvent(NeedsListCreatedEvent, "NL1", nil, time.Now())))

	assert.Len(t, handler.seen, 1, "handler only receives subscribed types")
	assert.Len(t, failing.seen, 1, "a failing handler does not stop dispatch")

	require.NoError(t, store.Unsubscribe(handler))
	require.NoError(t, store.Publish(NewEvent(NeedsListTransitionedEvent, "NL1", nil, time.Now())))
	assert.Len(t, handler.seen, 1)
}
