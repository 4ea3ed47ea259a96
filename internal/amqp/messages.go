package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finassist/internal/core"
)

// Report lifecycle events carried on the queue.
const (
	EventReportGenerated = "report.generated"
	EventReportDeleted   = "report.deleted"
)

// ReportEventMessage announces a report change. It carries identifiers
// only; consumers load the report from storage.
type ReportEventMessage struct {
	EventID   string          `json:"eventId"`
	Event     string          `json:"event"`
	ReportID  int64           `json:"reportId"`
	Owner     string          `json:"owner"`
	Type      core.ReportType `json:"type,omitempty"`
	Period    string          `json:"period,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewReportGeneratedMessage builds the event for a freshly persisted report.
func NewReportGeneratedMessage(r core.Report) *ReportEventMessage {
	return &ReportEventMessage{
		EventID:   uuid.NewString(),
		Event:     EventReportGenerated,
		ReportID:  r.ID,
		Owner:     r.Owner,
		Type:      r.Type,
		Period:    r.Period,
		Timestamp: time.Now().UTC(),
	}
}

func NewReportDeletedMessage(owner string, id int64) *ReportEventMessage {
	return &ReportEventMessage{
		EventID:   uuid.NewString(),
		Event:     EventReportDeleted,
		ReportID:  id,
		Owner:     owner,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportEventMessageFromJSON decodes and validates a message body.
func ReportEventMessageFromJSON(data []byte) (*ReportEventMessage, error) {
	var msg ReportEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Event {
	case EventReportGenerated, EventReportDeleted:
	default:
		return nil, fmt.Errorf("unknown event %q", msg.Event)
	}
	if msg.ReportID <= 0 {
		return nil, fmt.Errorf("event %s without report id", msg.EventID)
	}
	if err := core.ValidateOwner(msg.Owner); err != nil {
		return nil, fmt.Errorf("event %s: %w", msg.EventID, err)
	}
	return &msg, nil
}
