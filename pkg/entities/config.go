package entities

import (
	"fmt"
	"time"
)

const (
	FeedStatic = "static"
	FeedAMQP   = "amqp"
	FeedOPCUA  = "opcua"

	StoreNone   = "none"
	StoreSQLite = "sqlite"
	StoreYAML   = "yaml"
)

type Thresholds struct {
	Temperature    int64 `yaml:"temperature"`
	LightIntensity int64 `yaml:"lightIntensity"`
	SecurityAlert  int64 `yaml:"securityAlert"`
}

// Get returns the threshold configured for s
func (t Thresholds) Get(s Signal) int64 {
	switch s {
	case SignalTemperature:
		return t.Temperature
	case SignalLightIntensity:
		return t.LightIntensity
	case SignalSecurityAlert:
		return t.SecurityAlert
	}
	return 0
}

// Set returns a copy of t with the threshold for s replaced
func (t Thresholds) Set(s Signal, value int64) Thresholds {
	switch s {
	case SignalTemperature:
		t.Temperature = value
	case SignalLightIntensity:
		t.LightIntensity = value
	case SignalSecurityAlert:
		t.SecurityAlert = value
	}
	return t
}

type SmartHomeConfig struct {
	Owner        Identity      `yaml:"owner"`
	Thresholds   Thresholds    `yaml:"thresholds"`
	PollInterval time.Duration `yaml:"pollInterval"`
	Feed         FeedConfig    `yaml:"feed"`
	Store        StoreConfig   `yaml:"store"`
	AMQP         AMQPConfig    `yaml:"amqp"`
	MQTT         MQTTConfig    `yaml:"mqtt"`
	Metrics      MetricsConfig `yaml:"metrics"`
	Log          LogConfig     `yaml:"log"`
}

type FeedConfig struct {
	Kind   string            `yaml:"kind"`
	Static map[Signal]int64  `yaml:"static"`
	OPCUA  OPCUAConfig       `yaml:"opcua"`
	Nodes  map[Signal]string `yaml:"nodes"`
}

type OPCUAConfig struct {
	Endpoint        string `yaml:"endpoint"`
	Username        string `yaml:"username"`
	Password        string `yaml:"password"`
	SecurityMode    string `yaml:"securityMode"`
	SecurityPolicy  string `yaml:"securityPolicy"`
	ApplicationName string `yaml:"applicationName"`
}

type StoreConfig struct {
	Kind string `yaml:"kind"`
	Path string `yaml:"path"`
}

type AMQPConfig struct {
	URL                    string  `yaml:"url"`
	DuplicationFilter      bool    `yaml:"duplicationFilter"`
	FilterCapacity         uint    `yaml:"filterCapacity"`
	DuplicationProbability float64 `yaml:"duplicationProbability"`
	// ResetFilterUsage is the fill percentage at which the filter is cleared
	ResetFilterUsage float32 `yaml:"resetFilterUsage"`
}

type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	ClientID    string `yaml:"clientId"`
	TopicPrefix string `yaml:"topicPrefix"`
	QoS         byte   `yaml:"qos"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ApplyDefaults fills every unset field with its default value
func (c *SmartHomeConfig) ApplyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Second
	}
	if c.Feed.Kind == "" {
		c.Feed.Kind = FeedStatic
	}
	if c.Feed.OPCUA.SecurityMode == "" {
		c.Feed.OPCUA.SecurityMode = "None"
	}
	if c.Feed.OPCUA.SecurityPolicy == "" {
		c.Feed.OPCUA.SecurityPolicy = "None"
	}
	if c.Feed.OPCUA.ApplicationName == "" {
		c.Feed.OPCUA.ApplicationName = "SmartHome Coordinator"
	}
	if c.Store.Kind == "" {
		c.Store.Kind = StoreNone
	}
	if c.AMQP.FilterCapacity == 0 {
		c.AMQP.FilterCapacity = 1000000
	}
	if c.AMQP.DuplicationProbability == 0 {
		c.AMQP.DuplicationProbability = 0.01
	}
	if c.AMQP.ResetFilterUsage == 0 {
		c.AMQP.ResetFilterUsage = 75
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "smarthome-coordinator"
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "smarthome"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate reports the first configuration error found
func (c *SmartHomeConfig) Validate() error {
	if c.Owner == "" {
		return fmt.Errorf("owner is required")
	}
	switch c.Feed.Kind {
	case FeedStatic:
	case FeedAMQP:
		if c.AMQP.URL == "" {
			return fmt.Errorf("amqp.url is required by the amqp feed")
		}
	case FeedOPCUA:
		if c.Feed.OPCUA.Endpoint == "" {
			return fmt.Errorf("feed.opcua.endpoint is required by the opcua feed")
		}
		for _, s := range Signals() {
			if c.Feed.Nodes[s] == "" {
				return fmt.Errorf("feed.nodes.%s is required by the opcua feed", s)
			}
		}
	default:
		return fmt.Errorf("unknown feed kind %q", c.Feed.Kind)
	}
	switch c.Store.Kind {
	case StoreNone:
	case StoreSQLite, StoreYAML:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required by the %s store", c.Store.Kind)
		}
	default:
		return fmt.Errorf("unknown store kind %q", c.Store.Kind)
	}
	if c.AMQP.DuplicationProbability <= 0 || c.AMQP.DuplicationProbability >= 1 {
		return fmt.Errorf("amqp.duplicationProbability must be in (0, 1)")
	}
	if c.AMQP.ResetFilterUsage < 0 || c.AMQP.ResetFilterUsage > 100 {
		return fmt.Errorf("amqp.resetFilterUsage must be a percentage")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
	}
	return nil
}
