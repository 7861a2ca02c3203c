package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"wisefido-vitals/internal/config"
	"wisefido-vitals/internal/models"
	"wisefido-vitals/internal/mqtt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBroker struct {
	subscribed   string
	unsubscribed []string
	handler      mqtt.MessageHandler
}

func (f *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	f.subscribed = topic
	f.handler = handler
	return nil
}

func (f *fakeBroker) Unsubscribe(topics ...string) error {
	f.unsubscribed = append(f.unsubscribed, topics...)
	return nil
}

type fakeIngestor struct {
	frames []models.TelemetryFrame
	err    error
}

func (f *fakeIngestor) IngestFrame(_ context.Context, frame models.TelemetryFrame) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, frame)
	return nil
}

func newTestConsumer(t *testing.T) (*MQTTConsumer, *fakeBroker, *fakeIngestor) {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	broker := &fakeBroker{}
	ingestor := &fakeIngestor{}
	return NewMQTTConsumer(cfg, broker, ingestor, zap.NewNop()), broker, ingestor
}

func TestHandleMessage_IngestsFrame(t *testing.T) {
	c, _, ingestor := newTestConsumer(t)

	frame := models.TelemetryFrame{
		DeviceID:  "spoofed-device",
		PatientID: "patient-1",
		Vitals:    models.VitalSigns{HeartRate: 78.5, Temperature: 36.7},
	}
	payload, err := json.Marshal(frame)
	require.NoError(t, err)

	require.NoError(t, c.handleMessage("wearable/device-1/data", payload))

	require.Len(t, ingestor.frames, 1)
	// 主题中的设备标识覆盖消息体里的值
	assert.Equal(t, "device-1", ingestor.frames[0].DeviceID)
	assert.Equal(t, "patient-1", ingestor.frames[0].PatientID)
	assert.Equal(t, 78.5, ingestor.frames[0].Vitals.HeartRate)
}

func TestHandleMessage_InvalidTopic(t *testing.T) {
	c, _, ingestor := newTestConsumer(t)

	err := c.handleMessage("wearable", []byte(`{}`))
	assert.Error(t, err)
	assert.Empty(t, ingestor.frames)
}

func TestHandleMessage_MalformedPayload(t *testing.T) {
	c, _, ingestor := newTestConsumer(t)

	err := c.handleMessage("wearable/device-1/data", []byte(`not json`))
	assert.Error(t, err)
	assert.Empty(t, ingestor.frames)
}

func TestHandleMessage_IngestFailure(t *testing.T) {
	c, _, ingestor := newTestConsumer(t)
	ingestor.err = errors.New("device not found")

	err := c.handleMessage("wearable/unknown/data", []byte(`{}`))
	assert.Error(t, err)
}

func TestStartStop_SubscribeUnsubscribe(t *testing.T) {
	c, broker, _ := newTestConsumer(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Start(ctx)
	}()

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, "wearable/+/data", broker.subscribed)

	require.NoError(t, c.Stop(context.Background()))
	assert.Contains(t, broker.unsubscribed, "wearable/+/data")
}
