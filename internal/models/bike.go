package models

import "time"

// BikeState is the latest known status of a bike: one row per bikeId,
// created at ward provisioning (or lazily on first telemetry for an
// unprovisioned tracker) and overwritten in place by every accepted
// reading. Ownership fields are never touched by telemetry.
type BikeState struct {
	BikeID          string    `bson:"bikeId" json:"bikeId"`
	WardID          string    `bson:"wardId,omitempty" json:"wardId,omitempty"`
	GuardianID      string    `bson:"guardianId,omitempty" json:"guardianId,omitempty"`
	BikeName        string    `bson:"bikeName,omitempty" json:"bikeName,omitempty"`
	WardName        string    `bson:"wardName,omitempty" json:"wardName,omitempty"`
	GuardianName    string    `bson:"guardianName,omitempty" json:"guardianName,omitempty"`
	Status          string    `bson:"status" json:"status"`
	LastSeen        time.Time `bson:"lastSeen" json:"lastSeen"`
	CreatedAt       time.Time `bson:"createdAt,omitempty" json:"createdAt,omitempty"`
	CurrentLocation Location  `bson:"currentLocation" json:"currentLocation"`
	AvgSpeed        float64   `bson:"avgSpeed" json:"avgSpeed"`
	BatteryLevel    float64   `bson:"batteryLevel" json:"batteryLevel"`
	TotalDistance   float64   `bson:"totalDistance" json:"totalDistance"`
	TotalRides      int       `bson:"totalRides" json:"totalRides"`
}
