package risk

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when publishing without a broker connection
var ErrNotConnected = errors.New("MQTT client not connected")

// ScanHandler is called with every decoded scan message
type ScanHandler func(scan *ScanFrame)

// PoseHandler is called with every decoded pose message
type PoseHandler func(pose Pose)

// MQTTClient manages the broker connection and the scan/pose subscriptions
type MQTTClient struct {
	client      mqtt.Client
	config      *MQTTConfig
	scanHandler ScanHandler
	poseHandler PoseHandler
	logger      *slog.Logger
	isConnected bool
	mu          sync.RWMutex
}

// InitMQTT creates and starts connecting a client.
// If neither MQTT_BROKER nor mqtt.broker is set, MQTT is disabled and this returns nil.
func InitMQTT(config *MQTTConfig, onScan ScanHandler, onPose PoseHandler, logger *slog.Logger) (*MQTTClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config == nil {
		return nil, fmt.Errorf("MQTT config is nil")
	}

	broker := os.Getenv("MQTT_BROKER")
	if broker == "" {
		broker = config.Broker
	}
	if broker == "" {
		logger.Info("MQTT disabled: MQTT_BROKER not set")
		return nil, nil
	}
	if config.ScanTopic == "" || config.PoseTopic == "" {
		return nil, fmt.Errorf("MQTT enabled but scan or pose topic is empty")
	}

	client := &MQTTClient{
		config:      config,
		scanHandler: onScan,
		poseHandler: onPose,
		logger:      logger,
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)

	clientID := os.Getenv("MQTT_CLIENT_ID")
	if clientID == "" {
		clientID = config.ClientID
	}
	if clientID == "" {
		clientID = "scanrisk"
	}
	opts.SetClientID(clientID)

	username := os.Getenv("MQTT_USERNAME")
	if username == "" {
		username = config.Username
	}
	if username != "" {
		opts.SetUsername(username)
		password := os.Getenv("MQTT_PASSWORD")
		if password == "" {
			password = config.Password
		}
		opts.SetPassword(password)
	}

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetCleanSession(false) // Preserve subscriptions on reconnect
	// Scans must be applied in arrival order; a stale scan overwriting a
	// fresh one would feed the control loop old geometry.
	opts.SetOrderMatters(true)

	opts.SetOnConnectHandler(client.onConnect)
	opts.SetConnectionLostHandler(client.onConnectionLost)
	opts.SetReconnectingHandler(client.onReconnecting)

	client.client = mqtt.NewClient(opts)

	go client.connectWithRetry()

	return client, nil
}

// connectWithRetry attempts to connect to the MQTT broker with exponential backoff
func (c *MQTTClient) connectWithRetry() {
	retryDelay := 1 * time.Second
	maxRetryDelay := 60 * time.Second

	for {
		c.logger.Info("connecting to MQTT broker")

		token := c.client.Connect()
		if token.WaitTimeout(10 * time.Second) {
			if token.Error() == nil {
				c.logger.Info("connected to MQTT broker")
				c.setConnected(true)
				return
			}
			c.logger.Warn("MQTT connection failed", "error", token.Error())
		} else {
			c.logger.Warn("MQTT connection timeout")
		}

		c.logger.Info("retrying MQTT connection", "delay", retryDelay)
		time.Sleep(retryDelay)
		retryDelay *= 2
		if retryDelay > maxRetryDelay {
			retryDelay = maxRetryDelay
		}
	}
}

// onConnect subscribes to the scan and pose topics
func (c *MQTTClient) onConnect(client mqtt.Client) {
	c.logger.Info("MQTT connected, subscribing")
	c.setConnected(true)

	c.subscribe(client, c.config.ScanTopic, c.createScanHandler())
	c.subscribe(client, c.config.PoseTopic, c.createPoseHandler())
}

func (c *MQTTClient) subscribe(client mqtt.Client, topic string, handler mqtt.MessageHandler) {
	token := client.Subscribe(topic, 0, handler)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		c.logger.Error("subscribe failed", "topic", topic, "error", token.Error())
		return
	}
	c.logger.Info("subscribed", "topic", topic)
}

// onConnectionLost is called when the MQTT connection is lost
// Auto-reconnect is enabled, so this is typically a transient event
func (c *MQTTClient) onConnectionLost(client mqtt.Client, err error) {
	c.logger.Warn("MQTT connection interrupted, auto-reconnect will retry", "error", err)
	c.setConnected(false)
}

func (c *MQTTClient) onReconnecting(client mqtt.Client, opts *mqtt.ClientOptions) {
	c.logger.Info("MQTT reconnecting")
}

// createScanHandler decodes scan payloads and forwards them
func (c *MQTTClient) createScanHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		scan, err := DecodeScan(msg.Payload())
		if err != nil {
			c.logger.Warn("dropping scan message", "topic", msg.Topic(), "error", err)
			return
		}
		if c.scanHandler != nil {
			c.scanHandler(scan)
		}
	}
}

// createPoseHandler decodes pose payloads and forwards them
func (c *MQTTClient) createPoseHandler() mqtt.MessageHandler {
	return func(client mqtt.Client, msg mqtt.Message) {
		pose, err := DecodePose(msg.Payload())
		if err != nil {
			c.logger.Warn("dropping pose message", "topic", msg.Topic(), "error", err)
			return
		}
		if c.poseHandler != nil {
			c.poseHandler(pose)
		}
	}
}

// DecodeScan parses a scan JSON payload
func DecodeScan(payload []byte) (*ScanFrame, error) {
	var scan ScanFrame
	if err := json.Unmarshal(payload, &scan); err != nil {
		return nil, fmt.Errorf("parsing scan JSON: %w", err)
	}
	if len(scan.Ranges) == 0 {
		return nil, ErrEmptyScan
	}
	if scan.RangeMax <= 0 {
		return nil, fmt.Errorf("scan range_max must be positive, got %v", scan.RangeMax)
	}
	return &scan, nil
}

// DecodePose parses a pose JSON payload
func DecodePose(payload []byte) (Pose, error) {
	var p Pose
	if err := json.Unmarshal(payload, &p); err != nil {
		return Pose{}, fmt.Errorf("parsing pose JSON: %w", err)
	}
	return p, nil
}

// IsConnected returns true if the MQTT client is connected
func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isConnected
}

func (c *MQTTClient) setConnected(connected bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isConnected = connected
}

// Disconnect gracefully closes the MQTT connection
func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.logger.Info("disconnecting from MQTT broker")
		c.client.Disconnect(250) // 250ms quiesce time
		c.setConnected(false)
	}
}

// GetClient returns the underlying MQTT client for publishing
func (c *MQTTClient) GetClient() mqtt.Client {
	return c.client
}

// newMQTTClientWithMock creates an MQTTClient with a provided mqtt.Client
// This is used for testing with mock clients
func newMQTTClientWithMock(client mqtt.Client, config *MQTTConfig, onScan ScanHandler, onPose PoseHandler) *MQTTClient {
	return &MQTTClient{
		client:      client,
		config:      config,
		scanHandler: onScan,
		poseHandler: onPose,
		logger:      slog.Default(),
	}
}
