package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// OilChange is the payload posted for each simulated service.
type OilChange struct {
	ClientName        string  `json:"client_name"`
	ClientPhone       string  `json:"client_phone"`
	Plate             string  `json:"plate"`
	VehicleBrand      string  `json:"vehicle_brand"`
	VehicleModel      string  `json:"vehicle_model"`
	VehicleType       string  `json:"vehicle_type"`
	VehicleYear       int     `json:"vehicle_year"`
	OdometerKm        int     `json:"odometer_km"`
	NextServiceKm     int     `json:"next_service_km"`
	ServiceDate       string  `json:"service_date"`
	PeriodicityMonths int     `json:"periodicity_months"`
	OilBrand          string  `json:"oil_brand"`
	OilType           string  `json:"oil_type"`
	OilViscosity      string  `json:"oil_viscosity"`
	OilLiters         float64 `json:"oil_liters"`
	OilFilter         bool    `json:"oil_filter"`
	AirFilter         bool    `json:"air_filter"`
	CabinFilter       bool    `json:"cabin_filter"`
	FuelFilter        bool    `json:"fuel_filter"`
}

// Rejection is the body returned when the subscription blocks a service.
type Rejection struct {
	Reason          string `json:"reason"`
	SuggestedAction string `json:"suggested_action"`
	Message         string `json:"message"`
	ServicesUsed    int    `json:"services_used"`
	ServicesLimit   int    `json:"services_limit"`
}

// ErrRejected is returned once the API refuses further services.
var ErrRejected = errors.New("service rejected by subscription")

var (
	firstNames = []string{"Juan", "María", "Carlos", "Lucía", "Diego", "Sofía", "Martín", "Valentina"}
	lastNames  = []string{"González", "Rodríguez", "Fernández", "López", "Martínez", "Pérez", "Gómez"}
	vehicles   = map[string][]string{
		"Toyota":     {"Hilux", "Corolla", "Etios"},
		"Ford":       {"Ranger", "Focus", "Ka"},
		"Volkswagen": {"Amarok", "Gol", "Vento"},
		"Fiat":       {"Cronos", "Toro", "Palio"},
		"Chevrolet":  {"Onix", "S10", "Cruze"},
	}
	oils        = []string{"YPF Elaion", "Shell Helix", "Castrol Magnatec", "Mobil Super", "Total Quartz"}
	oilTypes    = []string{"mineral", "semisynthetic", "synthetic"}
	viscosities = []string{"5W30", "10W40", "15W40", "5W40"}
)

var authToken string

func authorizedPost(url string, contentType string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// randomPlate returns an Argentine style plate, old (ABC123) or Mercosur (AB123CD).
func randomPlate() string {
	letter := func() byte { return byte('A' + rand.Intn(26)) }
	if rand.Intn(2) == 0 {
		return fmt.Sprintf("%c%c%c%03d", letter(), letter(), letter(), rand.Intn(1000))
	}
	return fmt.Sprintf("%c%c%03d%c%c", letter(), letter(), rand.Intn(1000), letter(), letter())
}

func randomOilChange(now time.Time) OilChange {
	brands := make([]string, 0, len(vehicles))
	for b := range vehicles {
		brands = append(brands, b)
	}
	brand := brands[rand.Intn(len(brands))]
	models := vehicles[brand]
	vtype := "car"
	if brand == "Toyota" && rand.Intn(2) == 0 {
		vtype = "pickup"
	}

	odometer := 10000 + rand.Intn(190000)
	interval := []int{5000, 7500, 10000}[rand.Intn(3)]
	return OilChange{
		ClientName:        firstNames[rand.Intn(len(firstNames))] + " " + lastNames[rand.Intn(len(lastNames))],
		ClientPhone:       fmt.Sprintf("11%08d", rand.Intn(100000000)),
		Plate:             randomPlate(),
		VehicleBrand:      brand,
		VehicleModel:      models[rand.Intn(len(models))],
		VehicleType:       vtype,
		VehicleYear:       2008 + rand.Intn(17),
		OdometerKm:        odometer,
		NextServiceKm:     odometer + interval,
		ServiceDate:       now.Format(time.RFC3339),
		PeriodicityMonths: []int{3, 6, 12}[rand.Intn(3)],
		OilBrand:          oils[rand.Intn(len(oils))],
		OilType:           oilTypes[rand.Intn(len(oilTypes))],
		OilViscosity:      viscosities[rand.Intn(len(viscosities))],
		OilLiters:         3.5 + float64(rand.Intn(4))*0.5,
		OilFilter:         true,
		AirFilter:         rand.Intn(2) == 0,
		CabinFilter:       rand.Intn(3) == 0,
		FuelFilter:        rand.Intn(4) == 0,
	}
}

func login(apiURL, email, password string) (string, error) {
	data, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	resp, err := authorizedPost(apiURL+"/auth/login", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to log in: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status: %d", resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode login response: %w", err)
	}
	if out.Token == "" {
		return "", errors.New("login response has no token")
	}
	return out.Token, nil
}

// sendOilChange posts one record and returns its service number.
func sendOilChange(apiURL string, oc OilChange) (string, error) {
	data, err := json.Marshal(oc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal oil change: %w", err)
	}
	resp, err := authorizedPost(apiURL+"/oil-changes", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to send oil change: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		var created struct {
			ServiceNumber string `json:"service_number"`
		}
		if err := json.Unmarshal(body, &created); err != nil {
			return "", fmt.Errorf("failed to decode response: %w", err)
		}
		return created.ServiceNumber, nil
	case http.StatusForbidden:
		var rej Rejection
		if json.Unmarshal(body, &rej) == nil && rej.Reason != "" {
			log.WithFields(log.Fields{
				"reason":           rej.Reason,
				"suggested_action": rej.SuggestedAction,
				"services_used":    rej.ServicesUsed,
				"services_limit":   rej.ServicesLimit,
			}).Warn(rej.Message)
		}
		return "", ErrRejected
	default:
		return "", fmt.Errorf("oil change creation failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// simulate posts count records one interval apart, stopping early when the
// subscription rejects a service. It returns how many were created.
func simulate(apiURL string, count int, interval time.Duration) int {
	created := 0
	for i := 0; i < count; i++ {
		if i > 0 && interval > 0 {
			time.Sleep(interval)
		}
		number, err := sendOilChange(apiURL, randomOilChange(time.Now()))
		if errors.Is(err, ErrRejected) {
			log.WithField("created", created).Warn("Subscription limit reached, stopping simulation")
			return created
		}
		if err != nil {
			log.WithError(err).Error("Failed to create oil change")
			continue
		}
		created++
		log.WithField("service_number", number).Info("Created oil change")
	}
	return created
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	authToken = os.Getenv("SIM_AUTH_TOKEN")
	if authToken == "" {
		token, err := login(apiURL, os.Getenv("SIM_EMAIL"), os.Getenv("SIM_PASSWORD"))
		if err != nil {
			log.WithError(err).Fatal("Set SIM_AUTH_TOKEN or SIM_EMAIL and SIM_PASSWORD")
		}
		authToken = token
	}

	count := envInt("SIM_SERVICES", 20)
	interval := time.Duration(envInt("SIM_TICK_SECONDS", 1)) * time.Second

	log.WithFields(log.Fields{
		"api_url":  apiURL,
		"services": count,
		"interval": interval,
	}).Info("Starting oil change simulation")

	created := simulate(apiURL, count, interval)
	log.WithField("created", created).Info("Simulation finished")
}
