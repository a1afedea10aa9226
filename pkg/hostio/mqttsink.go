package hostio

import (
	"log"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/serebryakov7/wmbusmeters/common"
	"github.com/serebryakov7/wmbusmeters/pkg/output"
)

// MQTTConfig holds the connection settings for an MQTT broker.
type MQTTConfig struct {
	Broker   string
	ClientID string
	Topic    string
}

const (
	DefaultBroker   = "tcp://localhost:1883"
	DefaultClientID = "wmbusmeters"
	DefaultTopic    = "wmbusmeters/telegrams"
)

// MQTTSink publishes decoded telegrams to MQTT, one record per message,
// to topic <Topic>/<meter>/<id>.
type MQTTSink struct {
	config MQTTConfig
	client mqtt.Client
}

// NewMQTTSink creates, but does not yet connect, an MQTT sink.
func NewMQTTSink(config MQTTConfig) *MQTTSink {
	return &MQTTSink{config: config}
}

// Connect establishes the connection to the broker.
func (s *MQTTSink) Connect() error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(s.config.Broker)
	opts.SetClientID(s.config.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		log.Println("(hostio) connected to MQTT broker")
	})
	opts.SetConnectionLostHandler(func(client mqtt.Client, err error) {
		log.Printf("(hostio) MQTT broker connection lost: %v", err)
	})

	s.client = mqtt.NewClient(opts)
	if token := s.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

// Disconnect closes the connection to the broker.
func (s *MQTTSink) Disconnect() {
	if s.client != nil && s.client.IsConnected() {
		s.client.Disconnect(250)
	}
}

// Publish serializes rec through pkg/output.JSON and publishes it to
// <Topic>/<meter>/<id>.
func (s *MQTTSink) Publish(rec *common.OutputRecord) {
	if s.client == nil || !s.client.IsConnected() {
		log.Println("(hostio) MQTT client not connected, record dropped")
		return
	}

	topic := s.config.Topic + "/" + rec.Meter + "/" + rec.ID
	payload := output.JSON(rec)

	token := s.client.Publish(topic, 0, false, payload)
	if token.WaitTimeout(5*time.Second) && token.Error() != nil {
		log.Printf("(hostio) MQTT publish error: %v", token.Error())
		return
	}
	log.Printf("(hostio) record %s/%s published to MQTT (%d bytes)", rec.Meter, rec.ID, len(payload))
}
