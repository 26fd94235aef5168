// Command simulator generates synthetic bike telemetry and submits it
// through the public ingestion contract, over HTTP and optionally MQTT.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Location represents a geographical location with latitude and longitude coordinates.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// TelemetryData carries the measured values of one reading.
type TelemetryData struct {
	AvgSpeed float64  `json:"avgSpeed"`
	Location Location `json:"location"`
	Battery  float64  `json:"battery"`
}

// Payload is the ingestion envelope the server accepts.
type Payload struct {
	BikeID string        `json:"bikeId"`
	Data   TelemetryData `json:"data"`
}

// BikeState tracks one simulated bike between ticks.
type BikeState struct {
	BikeID   string
	Position Location
	SpeedKmh float64
	Battery  float64
}

// Start around Mumbai, where provisioned bikes are placed by default.
var baseLocation = Location{Lat: 19.0760, Lng: 72.8777}

func jitterLocation(base Location, meters float64) Location {
	latMetersPerDeg := 111320.0
	lngMetersPerDeg := 111320.0 * math.Cos(base.Lat*math.Pi/180)
	dLat := (rand.Float64()*2 - 1) * (meters / latMetersPerDeg)
	dLng := (rand.Float64()*2 - 1) * (meters / lngMetersPerDeg)
	return Location{Lat: base.Lat + dLat, Lng: base.Lng + dLng}
}

func step(s *BikeState) {
	// Drift speed, clamp to a plausible cycling range.
	s.SpeedKmh += (rand.Float64()*2 - 1) * 3
	if s.SpeedKmh < 0 {
		s.SpeedKmh = 0
	}
	if s.SpeedKmh > 35 {
		s.SpeedKmh = 35
	}
	s.Position = jitterLocation(s.Position, 30+s.SpeedKmh*2)
	s.Battery -= rand.Float64() * 0.2
	if s.Battery < 5 {
		s.Battery = 100
	}
}

func payloadFromState(s *BikeState) Payload {
	return Payload{
		BikeID: s.BikeID,
		Data: TelemetryData{
			AvgSpeed: math.Round(s.SpeedKmh*10) / 10,
			Location: s.Position,
			Battery:  math.Round(s.Battery),
		},
	}
}

func sendHTTP(serverURL string, p Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		log.WithError(err).Error("Failed to marshal telemetry")
		return
	}
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Post(serverURL+"/api/bike/data", "application/json", bytes.NewBuffer(data))
	if err != nil {
		log.WithError(err).Error("Failed to send telemetry")
		return
	}
	defer resp.Body.Close()
	log.WithFields(log.Fields{
		"bikeId":  p.BikeID,
		"status":  resp.Status,
		"speed":   p.Data.AvgSpeed,
		"battery": p.Data.Battery,
	}).Info("Sent telemetry")
}

func sendMQTT(client mqtt.Client, p Payload) {
	data, err := json.Marshal(p)
	if err != nil {
		log.WithError(err).Error("Failed to marshal telemetry")
		return
	}
	topic := fmt.Sprintf("bike/%s/telemetry", p.BikeID)
	if token := client.Publish(topic, 1, false, data); token.Wait() && token.Error() != nil {
		log.WithError(token.Error()).WithField("topic", topic).Error("Failed to publish telemetry")
	}
}

func main() {
	serverURL := os.Getenv("SERVER_URL")
	if serverURL == "" {
		serverURL = "http://localhost:3001"
	}
	numBikes := 3
	if v := os.Getenv("NUM_BIKES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			numBikes = parsed
		}
	}
	interval := 5 * time.Second
	if v := os.Getenv("SEND_INTERVAL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			interval = parsed
		}
	}

	var mqttClient mqtt.Client
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		opts := mqtt.NewClientOptions().AddBroker(broker).SetClientID("smartcycle-simulator")
		mqttClient = mqtt.NewClient(opts)
		if token := mqttClient.Connect(); token.Wait() && token.Error() != nil {
			log.WithError(token.Error()).Fatal("Failed to connect to MQTT broker")
		}
		log.WithField("broker", broker).Info("Publishing telemetry over MQTT")
	}

	bikes := make([]*BikeState, 0, numBikes)
	for i := 1; i <= numBikes; i++ {
		bikes = append(bikes, &BikeState{
			BikeID:   fmt.Sprintf("BIKE%03d", i),
			Position: jitterLocation(baseLocation, 500),
			SpeedKmh: 10 + rand.Float64()*10,
			Battery:  60 + rand.Float64()*40,
		})
	}

	log.WithFields(log.Fields{
		"server":   serverURL,
		"bikes":    numBikes,
		"interval": interval,
	}).Info("Simulator started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for range ticker.C {
		for _, b := range bikes {
			step(b)
			p := payloadFromState(b)
			sendHTTP(serverURL, p)
			if mqttClient != nil {
				sendMQTT(mqttClient, p)
			}
		}
	}
}
