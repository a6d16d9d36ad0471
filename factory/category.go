/*
Package factory provides YAML/JSON to Go leave category conversion.

PURPOSE:
  Converts leave category definitions into leave.Category values so a
  school can configure its leave kinds without code changes. The same file
  format is accepted from disk (leave.categories_file) and from the admin
  API.

FORMAT:
  YAML is a superset of JSON, so both parse through yaml.v3:

    categories:
      - id: 1
        name: Casual
        annual_quota: 12
      - id: 4
        name: Unpaid
        unlimited: true

  A bare list (without the "categories:" key) is accepted too.

RULES:
  - name is required and unique (case-insensitive)
  - annual_quota must be >= 0 and a multiple of 0.5
  - unlimited: true (or annual_quota: 0) yields the unbounded sentinel
  - id is optional; 0 lets the store assign one

USAGE:
  f := factory.NewCategoryFactory()
  categories, err := f.ParseCategories(data)
  categories, err := f.LoadFile("config/categories.yaml")
  err = factory.SeedCategories(ctx, store, categories)

SEE ALSO:
  - leave/types.go: Category definition
  - cmd/server/main.go: Seeds categories at startup
*/
package factory

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// SCHEMA TYPES
// =============================================================================

// CategoryYAML is the file representation of a leave category.
type CategoryYAML struct {
	ID          int64   `yaml:"id,omitempty" json:"id,omitempty"`
	Name        string  `yaml:"name" json:"name"`
	AnnualQuota float64 `yaml:"annual_quota,omitempty" json:"annual_quota,omitempty"`
	Unlimited   bool    `yaml:"unlimited,omitempty" json:"unlimited,omitempty"`
}

// CategoryFile is the top-level document.
type CategoryFile struct {
	Categories []CategoryYAML `yaml:"categories" json:"categories"`
}

// =============================================================================
// CATEGORY FACTORY
// =============================================================================

// CategoryFactory converts category definitions to Go structs.
type CategoryFactory struct{}

// NewCategoryFactory creates a new category factory.
func NewCategoryFactory() *CategoryFactory {
	return &CategoryFactory{}
}

// LoadFile reads and parses a category file.
func (f *CategoryFactory) LoadFile(path string) ([]leave.Category, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read categories file: %w", err)
	}
	return f.ParseCategories(data)
}

// ParseCategories parses a YAML or JSON document into categories.
func (f *CategoryFactory) ParseCategories(data []byte) ([]leave.Category, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &generic.ValidationError{Field: "categories", Message: "document is empty"}
	}

	var defs []CategoryYAML
	if trimmed[0] == '[' || trimmed[0] == '-' {
		if err := yaml.Unmarshal(trimmed, &defs); err != nil {
			return nil, fmt.Errorf("failed to parse categories: %w", err)
		}
	} else {
		var doc CategoryFile
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse categories: %w", err)
		}
		defs = doc.Categories
	}

	return f.FromYAML(defs)
}

// FromYAML validates definitions and converts them to categories.
func (f *CategoryFactory) FromYAML(defs []CategoryYAML) ([]leave.Category, error) {
	if len(defs) == 0 {
		return nil, &generic.ValidationError{Field: "categories", Message: "at least one category is required"}
	}

	seen := make(map[string]bool, len(defs))
	categories := make([]leave.Category, 0, len(defs))
	for i, def := range defs {
		c, err := f.FromDefinition(def)
		if err != nil {
			return nil, fmt.Errorf("category %d: %w", i+1, err)
		}
		key := strings.ToLower(c.Name)
		if seen[key] {
			return nil, &generic.ValidationError{Field: "name", Message: fmt.Sprintf("duplicate category %q", c.Name)}
		}
		seen[key] = true
		categories = append(categories, c)
	}
	return categories, nil
}

// FromDefinition converts a single definition.
func (f *CategoryFactory) FromDefinition(def CategoryYAML) (leave.Category, error) {
	name := strings.TrimSpace(def.Name)
	if name == "" {
		return leave.Category{}, &generic.ValidationError{Field: "name", Message: "is required"}
	}
	if def.AnnualQuota < 0 {
		return leave.Category{}, &generic.ValidationError{Field: "annual_quota", Message: "must not be negative"}
	}
	quota := decimal.NewFromFloat(def.AnnualQuota)
	if !quota.Mul(decimal.NewFromInt(2)).IsInteger() {
		return leave.Category{}, &generic.ValidationError{Field: "annual_quota", Message: "must be a multiple of half a day"}
	}
	if def.Unlimited {
		quota = decimal.Zero
	}

	return leave.Category{
		ID:          generic.CategoryID(def.ID),
		Name:        name,
		AnnualQuota: generic.Amount{Value: quota, Unit: generic.UnitDays},
	}, nil
}

// ToYAML converts a category back to its file representation.
func (f *CategoryFactory) ToYAML(c leave.Category) CategoryYAML {
	quota, _ := c.AnnualQuota.Value.Float64()
	return CategoryYAML{
		ID:          int64(c.ID),
		Name:        c.Name,
		AnnualQuota: quota,
		Unlimited:   c.Unlimited(),
	}
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultCategories are seeded when no categories file is configured.
func DefaultCategories() []leave.Category {
	return []leave.Category{
		{ID: 1, Name: "Casual", AnnualQuota: generic.Days(12)},
		{ID: 2, Name: "Sick", AnnualQuota: generic.Days(10)},
		{ID: 3, Name: "Earned", AnnualQuota: generic.Days(15)},
		{ID: 4, Name: "Unpaid", AnnualQuota: generic.Days(0)},
	}
}

// SeedCategories upserts categories in one unit of work. A category without
// an id takes the id of an existing category with the same name, so seeding
// the same file twice doesn't duplicate rows.
func SeedCategories(ctx context.Context, store leave.Store, categories []leave.Category) error {
	return store.WithTx(ctx, func(repo leave.Repository) error {
		existing, err := repo.ListCategories(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]generic.CategoryID, len(existing))
		for _, c := range existing {
			byName[strings.ToLower(c.Name)] = c.ID
		}
		for i := range categories {
			if categories[i].ID == 0 {
				categories[i].ID = byName[strings.ToLower(categories[i].Name)]
			}
			if err := repo.SaveCategory(ctx, &categories[i]); err != nil {
				return fmt.Errorf("failed to seed category %q: %w", categories[i].Name, err)
			}
		}
		return nil
	})
}
