package risk

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNewPublisher(t *testing.T) {
	publisher := NewPublisher(nil, "", nil)
	if publisher == nil {
		t.Fatal("NewPublisher() returned nil")
	}
	if publisher.Topic() != DefaultPublishTopic {
		t.Errorf("Topic() = %s, want %s", publisher.Topic(), DefaultPublishTopic)
	}
	if publisher.qos != 0 {
		t.Errorf("Default QoS = %d, want 0", publisher.qos)
	}
	if !publisher.retain {
		t.Error("Default retain should be true")
	}
	if _, ok := publisher.Latest(); ok {
		t.Error("Latest() should be empty before the first field")
	}
}

func TestPublisher_PublishesRetainedField(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	publisher := NewPublisher(mock, "robot/safety", nil)

	field := SafetyField{1, 0.5, 0.25}
	if err := publisher.Publish(field); err != nil {
		t.Fatalf("Publish() error: %v", err)
	}
	publisher.SetProbability(SafetyField{1, 1, 1})

	msgs := mock.Published()
	if len(msgs) != 2 {
		t.Fatalf("published %d messages, want 2", len(msgs))
	}
	if msgs[0].Topic != "robot/safety" {
		t.Errorf("Topic = %s, want robot/safety", msgs[0].Topic)
	}
	if !msgs[0].Retain {
		t.Error("field message should be retained")
	}

	var got FieldMessage
	if err := json.Unmarshal(msgs[0].Payload, &got); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if got.Cycle != 1 {
		t.Errorf("Cycle = %d, want 1", got.Cycle)
	}
	if len(got.Field) != 3 || got.Field[2] != 0.25 {
		t.Errorf("Field = %v, want %v", got.Field, field)
	}
	if got.Timestamp == 0 {
		t.Error("Timestamp should be set")
	}

	if err := json.Unmarshal(msgs[1].Payload, &got); err != nil {
		t.Fatalf("unmarshaling payload: %v", err)
	}
	if got.Cycle != 2 {
		t.Errorf("second Cycle = %d, want 2", got.Cycle)
	}
}

func TestPublisher_KeepsCopyOfField(t *testing.T) {
	publisher := NewPublisher(nil, "robot/safety", nil)
	field := SafetyField{0.3, 0.4}
	publisher.SetProbability(field)
	field[0] = 0

	latest, ok := publisher.Latest()
	if !ok {
		t.Fatal("Latest() should hold the last field")
	}
	if latest.Field[0] != 0.3 {
		t.Errorf("Latest().Field[0] = %v, want 0.3", latest.Field[0])
	}
}

func TestPublisher_NotConnected(t *testing.T) {
	err := NewPublisher(nil, "robot/safety", nil).Publish(SafetyField{1})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}

	mock := NewMockClient()
	err = NewPublisher(mock, "robot/safety", nil).Publish(SafetyField{1})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestPublisher_PublishError(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	mock.SetPublishError(errors.New("quota exceeded"))

	err := NewPublisher(mock, "robot/safety", nil).Publish(SafetyField{1})
	if err == nil {
		t.Fatal("expected publish error")
	}
}

func TestPublisher_AsEstimatorSink(t *testing.T) {
	mock := NewMockClient()
	mock.SetConnected(true)
	publisher := NewPublisher(mock, "robot/safety", nil)
	e := newTestEstimator(t, PlannerConfig{ProcessEvery: 2}, WithSink(publisher))

	for i := 0; i < 4; i++ {
		if _, _, err := e.Cycle(Pose{}, arcScan()); err != nil {
			t.Fatalf("Cycle() error: %v", err)
		}
	}
	if n := len(mock.Published()); n != 2 {
		t.Errorf("published %d fields, want 2 (one per processed cycle)", n)
	}
}
