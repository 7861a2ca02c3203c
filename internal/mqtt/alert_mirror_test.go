package mqtt

import (
	"encoding/json"
	"errors"
	"testing"

	"wisefido-vitals/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	f.topic = topic
	f.payload = payload
	return f.err
}

func TestAlertMirror_PublishEmergency(t *testing.T) {
	pub := &fakePublisher{}
	mirror := NewAlertMirror(pub, 1, zap.NewNop())

	event := models.EmergencyEvent{
		EventID:   "event-1",
		DeviceID:  "device-1",
		PatientID: "patient-1",
		EventType: "tachycardia",
		Severity:  models.SeverityHigh,
		Status:    models.EmergencyStatusDetected,
	}
	require.NoError(t, mirror.PublishEmergency(event))

	assert.Equal(t, "wisefido/alerts/patient-1", pub.topic)

	var decoded models.EmergencyEvent
	require.NoError(t, json.Unmarshal(pub.payload, &decoded))
	assert.Equal(t, "event-1", decoded.EventID)
	assert.Equal(t, "tachycardia", decoded.EventType)
}

func TestAlertMirror_PublishFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	mirror := NewAlertMirror(pub, 1, zap.NewNop())

	err := mirror.PublishEmergency(models.EmergencyEvent{PatientID: "patient-1"})
	assert.Error(t, err)
}
