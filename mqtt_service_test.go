package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kwv/scanrisk/risk"
)

// TestServicePipeline_PublishesField wires the publisher the way RunService
// does and drives the control loop by hand
func TestServicePipeline_PublishesField(t *testing.T) {
	app, _ := testApp(writeFixtures(t, "  processEvery: 2"))
	config, err := risk.LoadConfig(app.ConfigFile)
	require.NoError(t, err)
	app.Config = config

	mock := risk.NewMockClient()
	mock.SetConnected(true)
	app.Publisher = risk.NewPublisher(mock, config.MQTT.PublishTopic, app.Logger)

	grid, err := risk.ParseGridFile(config.Map.File)
	require.NoError(t, err)
	require.NoError(t, app.setupEstimator(grid))

	loop := &risk.ControlLoop{
		Estimator: app.Estimator,
		State:     app.StateTracker,
		Logger:    app.Logger,
	}

	// No inputs yet: nothing runs
	loop.Tick()
	assert.Empty(t, mock.Published())

	app.StateTracker.UpdatePose(risk.Pose{X: 1, Y: 1})
	app.StateTracker.UpdateScan(arcScan())
	for i := 0; i < 4; i++ {
		loop.Tick()
	}

	msgs := mock.Published()
	require.Len(t, msgs, 2, "one field per processed cycle")
	assert.Equal(t, risk.DefaultPublishTopic, msgs[0].Topic)
	assert.True(t, msgs[0].Retain)

	var last risk.FieldMessage
	require.NoError(t, json.Unmarshal(msgs[1].Payload, &last))
	assert.Equal(t, uint64(2), last.Cycle)
	require.Len(t, last.Field, 360)
	for i, v := range last.Field {
		if v != 1 {
			t.Fatalf("field[%d] = %v, want 1 for a stationary robot", i, v)
		}
	}
}

// TestServicePipeline_DisconnectedPublisherDoesNotStopLoop keeps processing
// while the broker is away
func TestServicePipeline_DisconnectedPublisherDoesNotStopLoop(t *testing.T) {
	app, _ := testApp(writeFixtures(t, "  processEvery: 1"))
	config, err := risk.LoadConfig(app.ConfigFile)
	require.NoError(t, err)
	app.Config = config

	mock := risk.NewMockClient()
	app.Publisher = risk.NewPublisher(mock, "", app.Logger)

	grid, err := risk.ParseGridFile(config.Map.File)
	require.NoError(t, err)
	require.NoError(t, app.setupEstimator(grid))

	app.StateTracker.UpdatePose(risk.Pose{})
	app.StateTracker.UpdateScan(arcScan())
	loop := &risk.ControlLoop{Estimator: app.Estimator, State: app.StateTracker, Logger: app.Logger}
	loop.Tick()
	loop.Tick()

	assert.Empty(t, mock.Published())
	assert.Equal(t, uint64(2), app.Estimator.Processed())
	latest, ok := app.Publisher.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Cycle)
}
