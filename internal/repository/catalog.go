package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aliskhannn/grammar-practice-bot/internal/domain/entities"
)

var ErrEmptyCatalog = errors.New("catalog has no sections")

// CatalogRepository provides read-only access to the curriculum: levels,
// their grammar sections and the topic vocabulary. It is loaded once from
// a JSON file at startup.
type CatalogRepository struct {
	curriculum *entities.Curriculum
}

// NewCatalogRepository loads and validates the curriculum at path.
func NewCatalogRepository(path string) (*CatalogRepository, error) {
	c, err := loadCurriculum(path)
	if err != nil {
		return nil, err
	}

	return &CatalogRepository{curriculum: c}, nil
}

// Curriculum returns the loaded curriculum.
func (r *CatalogRepository) Curriculum() *entities.Curriculum {
	return r.curriculum
}

func loadCurriculum(path string) (*entities.Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var c entities.Curriculum
	if err = json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog JSON: %w", err)
	}

	if len(c.Sections) == 0 {
		return nil, ErrEmptyCatalog
	}

	if err = c.Index(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	return &c, nil
}
