package risk

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults for the service surfaces
const (
	DefaultProcessEvery    = 2
	DefaultControlInterval = 100 * time.Millisecond
	DefaultHTTPPort        = 8080
	DefaultScanTopic       = "scanrisk/scan"
	DefaultPoseTopic       = "scanrisk/pose"
	DefaultPublishTopic    = "scanrisk/safety"
)

// DefaultPlannerConfig returns the planner settings of the reference controller
func DefaultPlannerConfig() PlannerConfig {
	var c PlannerConfig
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero-valued settings
func (c *PlannerConfig) ApplyDefaults() {
	if c.StaticMatchRadius == 0 {
		c.StaticMatchRadius = DefaultStaticMatchRadius
	}
	if c.SlotCapacity == 0 {
		c.SlotCapacity = DefaultSlotCapacity
	}
	if c.SentinelDistance == 0 {
		c.SentinelDistance = DefaultSentinelDistance
	}
	if c.ProcessEvery == 0 {
		c.ProcessEvery = DefaultProcessEvery
	}
	if c.Association == "" {
		c.Association = AssociationGreedy
	}
	if c.CollisionAlpha == 0 {
		c.CollisionAlpha = DefaultCollisionAlpha
	}
	if c.CollisionBeta == 0 {
		c.CollisionBeta = DefaultCollisionBeta
	}
	if c.Sigma == 0 {
		c.Sigma = DefaultSigma
	}
	if c.GaussGamma == 0 {
		c.GaussGamma = DefaultGaussGamma
	}
	if c.Epsilon == 0 {
		c.Epsilon = DefaultEpsilon
	}
	if c.OccupiedValue == 0 {
		c.OccupiedValue = CellOccupied
	}
	if c.ControlInterval == "" {
		c.ControlInterval = DefaultControlInterval.String()
	}
}

// Validate checks planner settings for values the pipeline cannot run with
func (c *PlannerConfig) Validate() error {
	if c.StaticMatchRadius < 0 {
		return fmt.Errorf("planner.staticMatchRadius must be >= 0")
	}
	if c.SlotCapacity < 1 {
		return fmt.Errorf("planner.slotCapacity must be >= 1")
	}
	if c.ProcessEvery < 1 {
		return fmt.Errorf("planner.processEvery must be >= 1")
	}
	if c.Association != AssociationGreedy && c.Association != AssociationHungarian {
		return fmt.Errorf("planner.association must be %q or %q, got %q",
			AssociationGreedy, AssociationHungarian, c.Association)
	}
	if c.CollisionAlpha < 0 || c.CollisionAlpha > 1 {
		return fmt.Errorf("planner.collisionAlpha must be in [0,1]")
	}
	if c.Sigma <= 0 {
		return fmt.Errorf("planner.sigma must be > 0")
	}
	if c.Epsilon <= 0 {
		return fmt.Errorf("planner.epsilon must be > 0")
	}
	if _, err := c.Interval(); err != nil {
		return err
	}
	return nil
}

// Interval returns the parsed control loop period
func (c *PlannerConfig) Interval() (time.Duration, error) {
	if c.ControlInterval == "" {
		return DefaultControlInterval, nil
	}
	d, err := time.ParseDuration(c.ControlInterval)
	if err != nil {
		return 0, fmt.Errorf("planner.controlInterval: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("planner.controlInterval must be positive")
	}
	return d, nil
}

// RetryDelay returns the parsed map acquisition retry interval
func (c *MapConfig) RetryDelay() (time.Duration, error) {
	return parseDurationOr(c.RetryInterval, DefaultRetryInterval, "map.retryInterval")
}

// Timeout returns the parsed map fetch timeout
func (c *MapConfig) Timeout() (time.Duration, error) {
	return parseDurationOr(c.FetchTimeout, DefaultFetchTimeout, "map.fetchTimeout")
}

func parseDurationOr(s string, def time.Duration, field string) (time.Duration, error) {
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

// Source builds the MapSource described by the config
func (c *MapConfig) Source() (MapSource, error) {
	switch {
	case c.URL != "":
		timeout, err := c.Timeout()
		if err != nil {
			return nil, err
		}
		return NewHTTPMapSource(c.URL, WithTimeout(timeout)), nil
	case c.File != "":
		return FileMapSource{Path: c.File}, nil
	}
	return nil, fmt.Errorf("map.file or map.url is required")
}

// ApplyDefaults fills zero-valued settings across every section
func (c *Config) ApplyDefaults() {
	c.Planner.ApplyDefaults()
	if c.MQTT.ScanTopic == "" {
		c.MQTT.ScanTopic = DefaultScanTopic
	}
	if c.MQTT.PoseTopic == "" {
		c.MQTT.PoseTopic = DefaultPoseTopic
	}
	if c.MQTT.PublishTopic == "" {
		c.MQTT.PublishTopic = DefaultPublishTopic
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "scanrisk"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	config.ApplyDefaults()

	// Validate required fields
	if config.Map.File == "" && config.Map.URL == "" {
		return nil, fmt.Errorf("map.file or map.url is required")
	}
	if err := config.Planner.Validate(); err != nil {
		return nil, err
	}
	if _, err := config.Map.RetryDelay(); err != nil {
		return nil, err
	}
	if _, err := config.Map.Timeout(); err != nil {
		return nil, err
	}

	return &config, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}
