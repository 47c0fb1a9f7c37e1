package entities

import (
	"time"

	"github.com/google/uuid"
)

// CatalogEventType represents the type of catalog event
type CatalogEventType string

const (
	CatalogEventSynced CatalogEventType = "catalog_synced"
)

// CatalogEvent announces index changes to other processes sharing the index.
type CatalogEvent struct {
	ID         string           `json:"id"`
	Type       CatalogEventType `json:"type"`
	Origin     string           `json:"origin"`
	Timestamp  time.Time        `json:"timestamp"`
	Documents  int              `json:"documents"`
	Cities     []string         `json:"cities"`
	EmbeddingV string           `json:"embedding_version,omitempty"`
}

// NewCatalogSyncedEvent creates a sync announcement from origin.
func NewCatalogSyncedEvent(origin string, documents int, cities []string, embeddingVersion string) *CatalogEvent {
	return &CatalogEvent{
		ID:         uuid.NewString(),
		Type:       CatalogEventSynced,
		Origin:     origin,
		Timestamp:  time.Now().UTC(),
		Documents:  documents,
		Cities:     append([]string(nil), cities...),
		EmbeddingV: embeddingVersion,
	}
}
