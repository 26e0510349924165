package network

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/janael-pinheiro/smarthome-sdk-golang/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const mqttConnectTimeout = 5 * time.Second

type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

type connectingClient interface {
	mqttClient
	Connect() mqtt.Token
}

// MQTTPublisher publishes crossings to <prefix>/<signal>/crossed
type MQTTPublisher struct {
	client mqttClient
	prefix string
	qos    byte
}

func NewMQTTPublisher(conf entities.MQTTConfig, log *logrus.Entry) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(conf.Broker)
	opts.SetClientID(conf.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.OnConnect = func(mqtt.Client) {
		log.WithField("broker", conf.Broker).Info("mqtt connection established")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("mqtt connection lost, will auto-reconnect")
	}

	client := mqtt.NewClient(opts)
	if err := connectMQTT(client, mqttConnectTimeout); err != nil {
		return nil, err
	}
	return newMQTTPublisher(client, conf.TopicPrefix, conf.QoS), nil
}

// connectMQTT disconnects the client when the connection does not succeed so it stops retrying in the background
func connectMQTT(client connectingClient, timeout time.Duration) error {
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		client.Disconnect(0)
		return errors.New("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return errors.Wrap(err, "mqtt connection failed")
	}
	return nil
}

func newMQTTPublisher(client mqttClient, prefix string, qos byte) *MQTTPublisher {
	return &MQTTPublisher{client: client, prefix: prefix, qos: qos}
}

func (p *MQTTPublisher) Topic(signal entities.Signal) string {
	return fmt.Sprintf("%s/%s/crossed", p.prefix, signal)
}

func (p *MQTTPublisher) Notify(ctx context.Context, event entities.ThresholdCrossed) error {
	payload, err := json.Marshal(NewThresholdCrossedMessage(event))
	if err != nil {
		return err
	}
	token := p.client.Publish(p.Topic(event.Signal), p.qos, false, payload)
	select {
	case <-token.Done():
		return errors.Wrapf(token.Error(), "mqtt publish %s", event.Name)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *MQTTPublisher) Close() {
	p.client.Disconnect(250)
}
