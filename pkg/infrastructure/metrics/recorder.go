package metrics

import (
	"github.com/vsinha/needslist/pkg/infrastructure/events"
)

// Recorder translates published needs list events into counter increments.
type Recorder struct{}

func NewRecorder() *Recorder {
	return &Recorder{}
}

var _ events.EventHandler = (*Recorder)(nil)

// Attach subscribes the recorder to every needs list event type.
func (r *Recorder) Attach(store events.EventStore) error {
	return store.Subscribe(events.AllEventTypes, r)
}

func (r *Recorder) CanHandle(eventType string) bool {
	for _, t := range events.AllEventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

func (r *Recorder) Handle(event events.Event) error {
	switch data := event.Data().(type) {
	case events.NeedsListCreated:
		RecordCreated(string(data.Phase))
		if len(data.Supersedes) > 0 {
			RecordScopeConflict("superseded")
		}
	case events.NeedsListTransitioned:
		RecordTransition(data.Operation, string(data.To))
	case events.LineOverridden:
		RecordLineOverride()
	case events.ScopeConflict:
		RecordScopeConflict("blocked")
	case events.OperationDenied:
		RecordDenied(data.Operation, data.Reason)
	}
	return nil
}
