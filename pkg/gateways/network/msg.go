package network

import (
	"time"

	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
)

// ReadingMessage is what sensor gateways publish on the readings exchange
type ReadingMessage struct {
	Signal    string    `json:"signal"`
	Value     int64     `json:"value"`
	RoundID   uint64    `json:"roundId"`
	Timestamp time.Time `json:"timestamp"`
}

type ThresholdCrossedMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Signal    string    `json:"signal"`
	Value     int64     `json:"value"`
	Threshold int64     `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

func NewThresholdCrossedMessage(event entities.ThresholdCrossed) ThresholdCrossedMessage {
	return ThresholdCrossedMessage{
		ID:        event.ID,
		Name:      event.Name,
		Signal:    string(event.Signal),
		Value:     event.Value,
		Threshold: event.Threshold,
		Timestamp: event.Timestamp,
	}
}
