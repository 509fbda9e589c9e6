package kafka

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/warp/attendance-engine/biometric"
	"github.com/warp/attendance-engine/core"
	"github.com/warp/attendance-engine/workcode"
)

// punchNamespace seeds IDs derived for messages that arrive without one.
var punchNamespace = uuid.MustParse("6f1c8a52-3c1e-4f7e-9a43-0d2b7f5e91aa")

// PunchMessage is the wire format of a punch on the topic.
type PunchMessage struct {
	ID               string        `json:"id"`
	EmployeeID       string        `json:"employee_id"`
	DeviceID         string        `json:"device_id"`
	Timestamp        time.Time     `json:"timestamp"`
	WorkCode         workcode.Code `json:"work_code"`
	VerificationType string        `json:"verification_type"`
	ConfidenceScore  int           `json:"confidence_score"`
}

// Event converts the message into a raw punch. A missing ID is derived from
// the punch itself so a redelivered message maps to the same event.
func (m PunchMessage) Event() (biometric.Event, error) {
	verification, err := biometric.ParseVerificationType(m.VerificationType)
	if err != nil {
		return biometric.Event{}, err
	}
	id := m.ID
	if id == "" {
		key := fmt.Sprintf("%s|%s|%s|%d", m.EmployeeID, m.DeviceID, m.Timestamp.UTC().Format(time.RFC3339Nano), m.WorkCode)
		id = uuid.NewSHA1(punchNamespace, []byte(key)).String()
	}
	e := biometric.Event{
		ID:           core.EventID(id),
		EmployeeID:   core.EmployeeID(m.EmployeeID),
		DeviceID:     core.DeviceID(m.DeviceID),
		Timestamp:    m.Timestamp,
		WorkCode:     m.WorkCode,
		Verification: verification,
		Confidence:   m.ConfidenceScore,
	}
	if err := e.Validate(); err != nil {
		return biometric.Event{}, err
	}
	return e, nil
}
