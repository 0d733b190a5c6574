package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// DefaultPeriodicityMonths is used when a record does not set one.
const DefaultPeriodicityMonths = 6

// OilChange represents an oil change service record.
type OilChange struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	LubricentroID     string             `json:"lubricentro_id" bson:"lubricentro_id"`
	ServiceNumber     string             `json:"service_number" bson:"service_number"`
	ClientName        string             `json:"client_name" bson:"client_name"`
	ClientPhone       string             `json:"client_phone" bson:"client_phone"`
	Plate             string             `json:"plate" bson:"plate"`
	VehicleBrand      string             `json:"vehicle_brand" bson:"vehicle_brand"`
	VehicleModel      string             `json:"vehicle_model" bson:"vehicle_model"`
	VehicleType       string             `json:"vehicle_type" bson:"vehicle_type"` // "car", "pickup", "motorcycle", "truck"
	VehicleYear       int                `json:"vehicle_year,omitempty" bson:"vehicle_year,omitempty"`
	OdometerKm        int                `json:"odometer_km" bson:"odometer_km"`
	NextServiceKm     int                `json:"next_service_km" bson:"next_service_km"`
	ServiceDate       time.Time          `json:"service_date" bson:"service_date"`
	PeriodicityMonths int                `json:"periodicity_months" bson:"periodicity_months"`
	NextServiceDate   time.Time          `json:"next_service_date" bson:"next_service_date"`
	OilBrand          string             `json:"oil_brand" bson:"oil_brand"`
	OilType           string             `json:"oil_type" bson:"oil_type"` // "mineral", "semisynthetic", "synthetic"
	OilViscosity      string             `json:"oil_viscosity" bson:"oil_viscosity"`
	OilLiters         float64            `json:"oil_liters" bson:"oil_liters"`
	OilFilter         bool               `json:"oil_filter" bson:"oil_filter"`
	AirFilter         bool               `json:"air_filter" bson:"air_filter"`
	CabinFilter       bool               `json:"cabin_filter" bson:"cabin_filter"`
	FuelFilter        bool               `json:"fuel_filter" bson:"fuel_filter"`
	Notes             string             `json:"notes" bson:"notes"`
	OperatorID        string             `json:"operator_id" bson:"operator_id"`
	OperatorName      string             `json:"operator_name" bson:"operator_name"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

// ComputeNextServiceDate returns serviceDate shifted by the periodicity in months.
func ComputeNextServiceDate(serviceDate time.Time, periodicityMonths int) time.Time {
	if periodicityMonths <= 0 {
		periodicityMonths = DefaultPeriodicityMonths
	}
	return serviceDate.AddDate(0, periodicityMonths, 0)
}

// OilChangeFilter narrows oil change listings.
type OilChangeFilter struct {
	LubricentroID string
	Plate         string
	From          *time.Time
	To            *time.Time
	Limit         int64
	Skip          int64
}
