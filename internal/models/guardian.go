package models

import "time"

// Ward is a tracked individual. Each ward owns exactly one bike, created
// atomically with it at provisioning time.
type Ward struct {
	WardID    string    `bson:"wardId" json:"wardId"`
	Name      string    `bson:"name" json:"name"`
	Age       int       `bson:"age" json:"age"`
	Grade     string    `bson:"grade" json:"grade"`
	BikeID    string    `bson:"bikeId" json:"bikeId"`
	BikeName  string    `bson:"bikeName" json:"bikeName"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	Status    string    `bson:"status" json:"status"`
}

// Guardian is the authorized viewer of a set of wards. Guardians are
// created lazily on the first authorized request for a userId.
type Guardian struct {
	GuardianID string    `bson:"guardianId" json:"guardianId"`
	UserID     int       `bson:"userId" json:"userId"`
	Name       string    `bson:"name" json:"name"`
	Email      string    `bson:"email" json:"email"`
	Phone      string    `bson:"phone" json:"phone"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	Status     string    `bson:"status" json:"status"`
	Wards      []Ward    `bson:"wards" json:"wards"`
}

// BikeIDs returns the set of bike IDs the guardian is authorized to see.
func (g *Guardian) BikeIDs() []string {
	ids := make([]string, 0, len(g.Wards))
	for _, w := range g.Wards {
		ids = append(ids, w.BikeID)
	}
	return ids
}

// WardRequest is the provisioning request for a new ward and its bike.
type WardRequest struct {
	Name     string `json:"name"`
	Age      int    `json:"age"`
	Grade    string `json:"grade"`
	BikeName string `json:"bikeName"`
}
