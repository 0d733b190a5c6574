// Package subscription holds the plan catalog and trial limits that the
// entitlement layer checks usage against.
package subscription

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const (
	TrialDays       = 7
	TrialServiceCap = 10
	TrialMaxUsers   = 2
)

// Plan describes the limits and prices of one subscription tier.
// MaxMonthlyServices of 0 means unlimited.
type Plan struct {
	ID                 string   `yaml:"id" json:"id"`
	Name               string   `yaml:"name" json:"name"`
	Description        string   `yaml:"description" json:"description"`
	MonthlyPrice       float64  `yaml:"monthly_price" json:"monthly_price"`
	SemiannualPrice    float64  `yaml:"semiannual_price" json:"semiannual_price"`
	MaxUsers           int      `yaml:"max_users" json:"max_users"`
	MaxMonthlyServices int      `yaml:"max_monthly_services" json:"max_monthly_services"`
	Features           []string `yaml:"features" json:"features"`
}

// Unlimited reports whether the plan has no monthly service cap.
func (p Plan) Unlimited() bool {
	return p.MaxMonthlyServices <= 0
}

// Catalog maps plan ids to plans.
type Catalog map[string]Plan

var ErrEmptyCatalog = errors.New("plan catalog is empty")

// DefaultCatalog returns the built-in plans.
func DefaultCatalog() Catalog {
	return Catalog{
		"starter": {
			ID:                 "starter",
			Name:               "Plan Iniciación",
			Description:        "Para lubricentros que recién comienzan",
			MonthlyPrice:       1500,
			SemiannualPrice:    8500,
			MaxUsers:           1,
			MaxMonthlyServices: 25,
			Features:           []string{"Registro de cambios de aceite", "Historial de clientes"},
		},
		"basic": {
			ID:                 "basic",
			Name:               "Plan Básico",
			Description:        "Ideal para lubricentros pequeños",
			MonthlyPrice:       2500,
			SemiannualPrice:    14000,
			MaxUsers:           2,
			MaxMonthlyServices: 50,
			Features:           []string{"Registro de cambios de aceite", "Historial de clientes", "Recordatorios de servicio"},
		},
		"premium": {
			ID:                 "premium",
			Name:               "Plan Premium",
			Description:        "Para lubricentros con mayor movimiento",
			MonthlyPrice:       4500,
			SemiannualPrice:    25000,
			MaxUsers:           5,
			MaxMonthlyServices: 150,
			Features:           []string{"Todo lo del plan básico", "Reportes", "Múltiples empleados"},
		},
		"enterprise": {
			ID:                 "enterprise",
			Name:               "Plan Empresarial",
			Description:        "Sin límites de servicios",
			MonthlyPrice:       7500,
			SemiannualPrice:    42000,
			MaxUsers:           999,
			MaxMonthlyServices: 0,
			Features:           []string{"Todo lo del plan premium", "Servicios ilimitados", "Soporte prioritario"},
		},
	}
}

// Lookup returns the plan with the given id.
func (c Catalog) Lookup(id string) (Plan, bool) {
	p, ok := c[id]
	return p, ok
}

// Plans returns the plans ordered by monthly price.
func (c Catalog) Plans() []Plan {
	out := make([]Plan, 0, len(c))
	for _, p := range c {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MonthlyPrice == out[j].MonthlyPrice {
			return out[i].ID < out[j].ID
		}
		return out[i].MonthlyPrice < out[j].MonthlyPrice
	})
	return out
}

type catalogFile struct {
	Plans []Plan `yaml:"plans"`
}

// LoadCatalog reads plans from a YAML file. An empty path yields the default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes a YAML plan list.
func ParseCatalog(data []byte) (Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal plans: %w", err)
	}
	if len(f.Plans) == 0 {
		return nil, ErrEmptyCatalog
	}
	c := make(Catalog, len(f.Plans))
	for _, p := range f.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("plan %q has no id", p.Name)
		}
		if p.MaxUsers <= 0 {
			return nil, fmt.Errorf("plan %s: max_users must be positive", p.ID)
		}
		if _, dup := c[p.ID]; dup {
			return nil, fmt.Errorf("duplicate plan id %s", p.ID)
		}
		c[p.ID] = p
	}
	return c, nil
}
