package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ashureev/providata-intake/internal/domain"
)

// Seed is the JSON document accepted by LoadSeed. Entries are active unless
// "ativo" is explicitly false.
type Seed struct {
	Offices    []SeedOffice   `json:"gabinetes"`
	Categories []SeedCategory `json:"categorias"`
}

// SeedOffice is an office entry of a seed file.
type SeedOffice struct {
	ID           string `json:"id"`
	Name         string `json:"nome"`
	Municipality string `json:"municipio"`
	UF           string `json:"uf"`
	Active       *bool  `json:"ativo,omitempty"`
}

// SeedCategory is a category entry of a seed file.
type SeedCategory struct {
	ID       string `json:"id"`
	Name     string `json:"nome"`
	OfficeID string `json:"gabinete_id,omitempty"`
	Active   *bool  `json:"ativo,omitempty"`
}

// LoadSeed upserts the offices and categories listed in the JSON file at path.
func LoadSeed(ctx context.Context, repo Repository, path string) (offices, categories int, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read seed file: %w", err)
	}

	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return 0, 0, fmt.Errorf("decode seed file: %w", err)
	}

	for _, o := range seed.Offices {
		office := domain.Office{ID: o.ID, Name: o.Name, Municipality: o.Municipality, UF: o.UF, Active: activeOrDefault(o.Active)}
		if err := repo.UpsertOffice(ctx, office); err != nil {
			return offices, categories, fmt.Errorf("seed office %q: %w", o.Name, err)
		}
		offices++
	}
	for _, c := range seed.Categories {
		category := domain.Category{ID: c.ID, Name: c.Name, OfficeID: c.OfficeID, Active: activeOrDefault(c.Active)}
		if err := repo.UpsertCategory(ctx, category); err != nil {
			return offices, categories, fmt.Errorf("seed category %q: %w", c.Name, err)
		}
		categories++
	}
	return offices, categories, nil
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}
