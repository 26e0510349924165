package utils

import (
	"os"
	"path/filepath"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type config interface {
	entities.SmartHomeConfig | entities.Thresholds | thresholdsDocument
}

// thresholdsDocument is the part of the configuration file the watcher reloads
type thresholdsDocument struct {
	Thresholds entities.Thresholds `yaml:"thresholds"`
}

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, err
}

func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepath.Clean(filepathName))
	if err != nil {
		return configEntity, err
	}

	err = yaml.Unmarshal(fileContent, &configEntity)
	return configEntity, err
}

// GetValueFromEnvironmentVariable returns the variable value or defaultValue when unset
func GetValueFromEnvironmentVariable(variableName, defaultValue string) string {
	value := os.Getenv(variableName)
	if value != "" {
		return value
	}
	return defaultValue
}

// LoadConfiguration parses the yaml file, applies SMARTHOME_* overrides and defaults, then validates
func LoadConfiguration(filepathName string) (*entities.SmartHomeConfig, error) {
	conf, err := ConfigurationParser(filepathName, entities.SmartHomeConfig{})
	if err != nil {
		return nil, errors.Wrapf(err, "parse configuration %s", filepathName)
	}

	conf.Owner = entities.Identity(GetValueFromEnvironmentVariable("SMARTHOME_OWNER", string(conf.Owner)))
	conf.AMQP.URL = GetValueFromEnvironmentVariable("SMARTHOME_AMQP_URL", conf.AMQP.URL)
	conf.MQTT.Broker = GetValueFromEnvironmentVariable("SMARTHOME_MQTT_BROKER", conf.MQTT.Broker)
	conf.Store.Path = GetValueFromEnvironmentVariable("SMARTHOME_STORE_PATH", conf.Store.Path)
	conf.Metrics.Addr = GetValueFromEnvironmentVariable("SMARTHOME_METRICS_ADDR", conf.Metrics.Addr)
	conf.Log.Level = GetValueFromEnvironmentVariable("SMARTHOME_LOG_LEVEL", conf.Log.Level)

	conf.ApplyDefaults()
	if err := conf.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	return &conf, nil
}

// LoadThresholds reads only the thresholds section of a configuration file
func LoadThresholds(filepathName string) (entities.Thresholds, error) {
	doc, err := ConfigurationParser(filepathName, thresholdsDocument{})
	if err != nil {
		return entities.Thresholds{}, err
	}
	return doc.Thresholds, nil
}
