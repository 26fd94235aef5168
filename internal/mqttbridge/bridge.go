// Package mqttbridge feeds telemetry published by trackers over MQTT
// into the same ingestion pipeline as the HTTP endpoint.
package mqttbridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/smartcycle/telemetry-server/internal/ingest"
	"github.com/smartcycle/telemetry-server/internal/models"
)

// Bridge subscribes to a telemetry topic and forwards each message to
// the ingestion service.
type Bridge struct {
	client mqtt.Client
	topic  string
	svc    *ingest.Service
}

// New configures the bridge. The topic is expected to look like
// "bike/+/telemetry"; when the payload omits bikeId it is taken from
// the second topic segment.
func New(broker, clientID, topic string, svc *ingest.Service) *Bridge {
	b := &Bridge{topic: topic, svc: svc}

	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)
	opts.OnConnect = func(c mqtt.Client) {
		log.WithField("broker", broker).Info("Connected to MQTT broker")
		if token := c.Subscribe(b.topic, 1, b.handleMessage); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).WithField("topic", b.topic).Error("MQTT subscribe failed")
		}
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.WithError(err).Warn("MQTT connection lost")
	}

	b.client = mqtt.NewClient(opts)
	return b
}

// Start connects to the broker.
func (b *Bridge) Start() error {
	token := b.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("timed out connecting to MQTT broker")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	var payload models.TelemetryPayload
	if err := json.Unmarshal(msg.Payload(), &payload); err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Warn("Dropping malformed MQTT telemetry")
		return
	}
	if payload.BikeID == "" {
		payload.BikeID = bikeIDFromTopic(msg.Topic())
	}

	if _, err := b.svc.Ingest(context.Background(), payload); err != nil {
		log.WithError(err).WithField("topic", msg.Topic()).Warn("Rejected MQTT telemetry")
	}
}

func bikeIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}
