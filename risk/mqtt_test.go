package risk

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMQTTConfig() *MQTTConfig {
	return &MQTTConfig{
		ClientID:     "test",
		ScanTopic:    "robot/scan",
		PoseTopic:    "robot/pose",
		PublishTopic: "robot/safety",
	}
}

func TestInitMQTT_DisabledWithoutBroker(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	client, err := InitMQTT(testMQTTConfig(), nil, nil, nil)
	assert.NoError(t, err)
	assert.Nil(t, client)
}

func TestInitMQTT_InvalidConfig(t *testing.T) {
	t.Setenv("MQTT_BROKER", "")

	_, err := InitMQTT(nil, nil, nil, nil)
	assert.Error(t, err)

	cfg := testMQTTConfig()
	cfg.Broker = "tcp://localhost:1883"
	cfg.PoseTopic = ""
	_, err = InitMQTT(cfg, nil, nil, nil)
	assert.Error(t, err)
}

func connectedMock(t *testing.T, st *StateTracker) (*MockClient, *MQTTClient) {
	t.Helper()
	mock := NewMockClient()
	client := newMQTTClientWithMock(mock, testMQTTConfig(), st.UpdateScan, st.UpdatePose)
	mock.SetOnConnect(client.onConnect)
	require.NoError(t, mock.Connect().Error())
	return mock, client
}

func TestMQTTClient_SubscribesOnConnect(t *testing.T) {
	mock, client := connectedMock(t, NewStateTracker())

	assert.True(t, client.IsConnected())
	assert.True(t, mock.Subscribed("robot/scan"))
	assert.True(t, mock.Subscribed("robot/pose"))
	assert.False(t, mock.Subscribed("robot/safety"))
}

func TestMQTTClient_MessagesReachState(t *testing.T) {
	st := NewStateTracker()
	mock, _ := connectedMock(t, st)

	require.True(t, mock.Deliver("robot/scan", []byte(`{
		"angle_min": 0, "angle_increment": 1.5707963, "range_min": 0.1, "range_max": 8,
		"ranges": [1.0, 2.0, 9.0, 0.5]
	}`)))
	require.True(t, mock.Deliver("robot/pose", []byte(`{"x": 1.5, "y": -2, "theta": 3.1}`)))

	pose, scan, ok := st.Inputs()
	require.True(t, ok)
	assert.Equal(t, Pose{X: 1.5, Y: -2, Theta: 3.1}, pose)
	assert.Equal(t, []float64{1.0, 2.0, 9.0, 0.5}, scan.Ranges)
	assert.Equal(t, 8.0, scan.RangeMax)
}

func TestMQTTClient_InvalidMessagesDropped(t *testing.T) {
	st := NewStateTracker()
	mock, _ := connectedMock(t, st)

	mock.Deliver("robot/scan", []byte(`not json`))
	mock.Deliver("robot/scan", []byte(`{"range_max": 8, "ranges": []}`))
	mock.Deliver("robot/pose", []byte(`{"x": "left"}`))

	_, _, ok := st.Inputs()
	assert.False(t, ok)
	_, poseAge := st.Ages()
	assert.Zero(t, poseAge)
}

func TestMQTTClient_SubscribeErrorLeavesTopicUnbound(t *testing.T) {
	mock := NewMockClient()
	mock.SetSubscribeError(errors.New("not authorized"))
	client := newMQTTClientWithMock(mock, testMQTTConfig(), nil, nil)
	mock.SetOnConnect(client.onConnect)
	require.NoError(t, mock.Connect().Error())

	assert.False(t, mock.Subscribed("robot/scan"))
	assert.True(t, client.IsConnected())
}

func TestMQTTClient_ConnectionLostAndDisconnect(t *testing.T) {
	mock, client := connectedMock(t, NewStateTracker())

	client.onConnectionLost(mock, errors.New("broken pipe"))
	assert.False(t, client.IsConnected())

	client.setConnected(true)
	client.Disconnect()
	assert.False(t, client.IsConnected())
	assert.False(t, mock.IsConnected())
	assert.Same(t, mock, client.GetClient())
}

func TestDecodeScan(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
		wantLen int
	}{
		{"valid", `{"angle_increment": 0.1, "range_max": 5, "ranges": [1, 2, 3]}`, nil, 3},
		{"empty ranges", `{"range_max": 5, "ranges": []}`, ErrEmptyScan, 0},
		{"missing ranges", `{"range_max": 5}`, ErrEmptyScan, 0},
		{"no range max", `{"ranges": [1]}`, nil, -1},
		{"malformed", `{"ranges": [1,`, nil, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scan, err := DecodeScan([]byte(tt.payload))
			switch {
			case tt.wantLen > 0:
				require.NoError(t, err)
				assert.Equal(t, tt.wantLen, scan.Len())
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			default:
				assert.Error(t, err)
			}
		})
	}
}

func TestDecodePose(t *testing.T) {
	p, err := DecodePose([]byte(`{"x": 1, "y": 2, "theta": -0.5}`))
	require.NoError(t, err)
	assert.Equal(t, Pose{X: 1, Y: 2, Theta: -0.5}, p)

	_, err = DecodePose([]byte(`[]`))
	assert.Error(t, err)
}
