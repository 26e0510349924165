package entities

import (
	"fmt"
	"time"
)

// Signal names one of the monitored feeds
type Signal string

const (
	SignalTemperature    Signal = "temperature"
	SignalLightIntensity Signal = "lightIntensity"
	SignalSecurityAlert  Signal = "securityAlert"
)

const (
	TemperatureThresholdCrossed    string = "TemperatureThresholdCrossed"
	LightIntensityThresholdCrossed string = "LightIntensityThresholdCrossed"
	SecurityAlertThresholdCrossed  string = "SecurityAlertThresholdCrossed"
)

// Signals returns the three signals in their canonical order
func Signals() []Signal {
	return []Signal{SignalTemperature, SignalLightIntensity, SignalSecurityAlert}
}

// Valid reports whether s is one of the known signals
func (s Signal) Valid() bool {
	switch s {
	case SignalTemperature, SignalLightIntensity, SignalSecurityAlert:
		return true
	}
	return false
}

// EventName returns the name of the notification emitted when s crosses its threshold
func (s Signal) EventName() string {
	switch s {
	case SignalTemperature:
		return TemperatureThresholdCrossed
	case SignalLightIntensity:
		return LightIntensityThresholdCrossed
	case SignalSecurityAlert:
		return SecurityAlertThresholdCrossed
	}
	return ""
}

func ParseSignal(name string) (Signal, error) {
	s := Signal(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown signal %q", name)
	}
	return s, nil
}

// Identity is the caller presented to owner-gated operations
type Identity string

type Reading struct {
	Signal    Signal    `json:"signal"`
	Value     int64     `json:"value"`
	RoundID   uint64    `json:"roundId"`
	Timestamp time.Time `json:"timestamp"`
}

// ThresholdCrossed is the notification emitted by a crossing check.
// Value carries the observed reading, Threshold the bound active at the time.
type ThresholdCrossed struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Signal    Signal    `json:"signal"`
	Value     int64     `json:"value"`
	Threshold int64     `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}
