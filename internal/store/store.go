// Package store persists innings documents. Every write is conditional on the
// version the writer read, which is the only serialization the engine relies
// on between concurrent writers.
package store

import (
	"errors"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

var (
	// ErrNotFound is returned when no document exists for the key
	ErrNotFound = errors.New("innings not found")

	// ErrExists is returned by Create when the key is taken
	ErrExists = errors.New("innings already exists")

	// ErrVersionConflict is returned by Write when the stored version no
	// longer matches the version the caller read
	ErrVersionConflict = errors.New("innings version conflict")
)

// Document is the stored form of one innings
type Document struct {
	Key        models.InningsKey           `json:"key"`
	Version    int64                       `json:"version"`
	Status     models.InningsStatus        `json:"status"`
	Context    models.InningsContext       `json:"context"`
	Deliveries []models.Delivery           `json:"deliveries"`
	State      *models.DerivedInningsState `json:"state,omitempty"`
}

// Archived reports whether the innings is closed to further writes
func (d Document) Archived() bool {
	return d.Status == models.InningsArchived
}
