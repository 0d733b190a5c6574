package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ukydev/lubricentro/internal/db"
	"github.com/ukydev/lubricentro/internal/metrics"
	"github.com/ukydev/lubricentro/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	defaultPageSize     = 50
	maxPageSize         = 200
	defaultUpcomingDays = 30
	maxUpcomingDays     = 365
	maxPeriodicity      = 24
)

var (
	vehicleTypes = map[string]bool{"car": true, "pickup": true, "motorcycle": true, "truck": true}
	oilTypes     = map[string]bool{"mineral": true, "semisynthetic": true, "synthetic": true}
)

// OilChangeService manages service records.
type OilChangeService struct {
	base
	records db.OilChangeCollection
	tenants db.LubricentroCollection
}

// NewOilChangeService creates the oil change service.
func NewOilChangeService(records db.OilChangeCollection, tenants db.LubricentroCollection, opts ...Option) *OilChangeService {
	return &OilChangeService{
		base:    newBase(opts),
		records: records,
		tenants: tenants,
	}
}

// NormalizePlate upper-cases a plate and drops spaces and dashes.
func NormalizePlate(plate string) string {
	return strings.Map(func(r rune) rune {
		if r == ' ' || r == '-' || r == '.' {
			return -1
		}
		return r
	}, strings.ToUpper(strings.TrimSpace(plate)))
}

// ServiceNumber formats the n-th service number of a lubricentro.
func ServiceNumber(prefix string, n int) string {
	return fmt.Sprintf("%s-%05d", prefix, n)
}

// coerce trims and validates the editable fields of a record.
func (s *OilChangeService) coerce(oc *models.OilChange) error {
	oc.ClientName = clean(oc.ClientName)
	oc.ClientPhone = strings.TrimSpace(oc.ClientPhone)
	oc.Plate = NormalizePlate(oc.Plate)
	oc.VehicleBrand = clean(oc.VehicleBrand)
	oc.VehicleModel = clean(oc.VehicleModel)
	oc.VehicleType = strings.ToLower(strings.TrimSpace(oc.VehicleType))
	oc.OilBrand = clean(oc.OilBrand)
	oc.OilType = strings.ToLower(strings.TrimSpace(oc.OilType))
	oc.OilViscosity = strings.ToUpper(strings.ReplaceAll(oc.OilViscosity, " ", ""))
	oc.Notes = strings.TrimSpace(oc.Notes)
	oc.OperatorName = clean(oc.OperatorName)

	switch {
	case oc.ClientName == "":
		return invalid("client_name", "el nombre del cliente es obligatorio")
	case oc.Plate == "":
		return invalid("plate", "el dominio es obligatorio")
	case oc.VehicleBrand == "":
		return invalid("vehicle_brand", "la marca del vehículo es obligatoria")
	case oc.VehicleType != "" && !vehicleTypes[oc.VehicleType]:
		return invalid("vehicle_type", "tipo de vehículo inválido: %s", oc.VehicleType)
	case oc.OilType != "" && !oilTypes[oc.OilType]:
		return invalid("oil_type", "tipo de aceite inválido: %s", oc.OilType)
	case oc.OdometerKm < 0:
		return invalid("odometer_km", "el kilometraje no puede ser negativo")
	case oc.NextServiceKm != 0 && oc.NextServiceKm <= oc.OdometerKm:
		return invalid("next_service_km", "el próximo servicio debe superar el kilometraje actual")
	case oc.OilLiters < 0:
		return invalid("oil_liters", "la cantidad de aceite no puede ser negativa")
	case oc.PeriodicityMonths < 0 || oc.PeriodicityMonths > maxPeriodicity:
		return invalid("periodicity_months", "la periodicidad debe estar entre 1 y %d meses", maxPeriodicity)
	}

	if oc.ServiceDate.IsZero() {
		oc.ServiceDate = s.now()
	}
	if oc.ServiceDate.After(s.now().Add(24 * time.Hour)) {
		return invalid("service_date", "la fecha de servicio no puede ser futura")
	}
	if oc.PeriodicityMonths == 0 {
		oc.PeriodicityMonths = models.DefaultPeriodicityMonths
	}
	oc.NextServiceDate = models.ComputeNextServiceDate(oc.ServiceDate, oc.PeriodicityMonths)
	return nil
}

// Create records a new oil change for a lubricentro, subject to the
// create_service entitlement, and bumps the lubricentro's usage counters.
func (s *OilChangeService) Create(ctx context.Context, actor *models.Claims, lubricentroID string, oc models.OilChange) (*models.OilChange, error) {
	if err := authorizeTenant(actor, lubricentroID); err != nil {
		return nil, err
	}
	if err := s.coerce(&oc); err != nil {
		return nil, err
	}
	if err := s.check(ctx, actor, lubricentroID, models.ActionCreateService); err != nil {
		return nil, err
	}

	tenant, err := s.tenants.FindLubricentroByID(ctx, lubricentroID)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "create oil change load lubricentro", err)
	}

	// Read-then-increment: concurrent creates may share a number.
	oc.ID = primitive.NilObjectID
	oc.LubricentroID = lubricentroID
	oc.ServiceNumber = ServiceNumber(tenant.ServicePrefix, tenant.ServiceCounter+1)
	oc.OperatorID = actor.UserID
	if oc.OperatorName == "" {
		oc.OperatorName = actor.Email
	}

	if err := s.records.InsertOilChange(ctx, &oc); err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "create oil change", err)
	}
	if err := s.tenants.IncrementServices(ctx, lubricentroID, models.PeriodOf(s.now())); err != nil {
		s.audit.SystemError(ctx, actor, lubricentroID, "increment services counter", err)
	}
	metrics.OilChangesCreated.WithLabelValues(lubricentroID).Inc()

	s.audit.Info(ctx, models.EventOilChangeCreated, actor, lubricentroID, "cambio de aceite registrado: "+oc.ServiceNumber, map[string]interface{}{
		"oil_change_id":  oc.ID.Hex(),
		"service_number": oc.ServiceNumber,
		"plate":          oc.Plate,
	})
	return &oc, nil
}

func (s *OilChangeService) loadScoped(ctx context.Context, actor *models.Claims, id, operation string) (*models.OilChange, error) {
	if actor == nil {
		return nil, ErrUnauthenticated
	}
	oc, err := s.records.FindOilChangeByID(ctx, id)
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, actor.LubricentroID, operation, err)
	}
	if actor.Role != models.RoleSuperAdmin && oc.LubricentroID != actor.LubricentroID {
		return nil, ErrNotFound
	}
	return oc, nil
}

// Get returns one record visible to actor.
func (s *OilChangeService) Get(ctx context.Context, actor *models.Claims, id string) (*models.OilChange, error) {
	return s.loadScoped(ctx, actor, id, "get oil change")
}

// List returns a page of records and the total matching count. Non
// superadmins only ever see their own lubricentro.
func (s *OilChangeService) List(ctx context.Context, actor *models.Claims, filter models.OilChangeFilter) ([]models.OilChange, int64, error) {
	if actor == nil {
		return nil, 0, ErrUnauthenticated
	}
	if actor.Role != models.RoleSuperAdmin {
		filter.LubricentroID = actor.LubricentroID
	}
	filter.Plate = NormalizePlate(filter.Plate)
	if filter.Limit <= 0 {
		filter.Limit = defaultPageSize
	}
	if filter.Limit > maxPageSize {
		filter.Limit = maxPageSize
	}
	if filter.Skip < 0 {
		filter.Skip = 0
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, invalid("to", "el rango de fechas es inválido")
	}

	list, err := s.records.FindOilChanges(ctx, filter)
	if err != nil {
		return nil, 0, s.fail(ctx, actor, filter.LubricentroID, "list oil changes", err)
	}
	total, err := s.records.CountOilChanges(ctx, filter)
	if err != nil {
		return nil, 0, s.fail(ctx, actor, filter.LubricentroID, "count oil changes", err)
	}
	return list, total, nil
}

// Update replaces the editable fields of a record and recomputes its next
// service date. Identity, numbering and operator are kept.
func (s *OilChangeService) Update(ctx context.Context, actor *models.Claims, id string, oc models.OilChange) (*models.OilChange, error) {
	existing, err := s.loadScoped(ctx, actor, id, "update oil change")
	if err != nil {
		return nil, err
	}
	if err := s.coerce(&oc); err != nil {
		return nil, err
	}
	oc.ID = existing.ID
	oc.LubricentroID = existing.LubricentroID
	oc.ServiceNumber = existing.ServiceNumber
	oc.OperatorID = existing.OperatorID
	if oc.OperatorName == "" {
		oc.OperatorName = existing.OperatorName
	}
	oc.CreatedAt = existing.CreatedAt

	err = s.records.UpdateOilChange(ctx, id, oc)
	if errors.Is(err, db.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.fail(ctx, actor, existing.LubricentroID, "update oil change", err)
	}
	s.audit.Info(ctx, models.EventOilChangeUpdated, actor, existing.LubricentroID, "cambio de aceite actualizado: "+oc.ServiceNumber, map[string]interface{}{
		"oil_change_id": id,
	})
	return &oc, nil
}

// Delete removes a record. Employees cannot delete.
func (s *OilChangeService) Delete(ctx context.Context, actor *models.Claims, id string) error {
	if err := requireRole(actor, models.RoleAdmin, models.RoleSuperAdmin); err != nil {
		return err
	}
	existing, err := s.loadScoped(ctx, actor, id, "delete oil change")
	if err != nil {
		return err
	}
	err = s.records.DeleteOilChange(ctx, id)
	if errors.Is(err, db.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return s.fail(ctx, actor, existing.LubricentroID, "delete oil change", err)
	}
	s.audit.Info(ctx, models.EventOilChangeDeleted, actor, existing.LubricentroID, "cambio de aceite eliminado: "+existing.ServiceNumber, map[string]interface{}{
		"oil_change_id": id,
		"plate":         existing.Plate,
	})
	return nil
}

// Upcoming lists records whose next service falls within the next days.
func (s *OilChangeService) Upcoming(ctx context.Context, actor *models.Claims, lubricentroID string, days int) ([]models.OilChange, error) {
	if err := authorizeTenant(actor, lubricentroID); err != nil {
		return nil, err
	}
	if days <= 0 {
		days = defaultUpcomingDays
	}
	if days > maxUpcomingDays {
		days = maxUpcomingDays
	}
	from := s.now()
	to := from.AddDate(0, 0, days)
	list, err := s.records.FindUpcomingOilChanges(ctx, lubricentroID, from, to)
	if err != nil {
		return nil, s.fail(ctx, actor, lubricentroID, "upcoming oil changes", err)
	}
	return list, nil
}
