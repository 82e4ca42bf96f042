// Package notify persists and delivers player notifications.
package notify

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/playguard/playguard/internal/domain"
)

// Catalog maps notification types to their presentation content.
type Catalog struct {
	entries map[domain.NotificationType]CatalogEntry
}

// CatalogEntry holds the static presentation fields for one notification type.
type CatalogEntry struct {
	Title    string `yaml:"title"`
	Priority string `yaml:"priority"`
}

// DefaultCatalog returns the built-in notification content.
func DefaultCatalog() *Catalog {
	return &Catalog{
		entries: map[domain.NotificationType]CatalogEntry{
			domain.NotificationSessionTimeWarning: {Title: "Session Time Limit Reached", Priority: "high"},
			domain.NotificationRealityCheck:       {Title: "Reality Check", Priority: "normal"},
			domain.NotificationBreakReminder:      {Title: "Time for a Break", Priority: "normal"},
			domain.NotificationRiskAlert:          {Title: "Responsible Gaming Alert", Priority: "high"},
		},
	}
}

// LoadCatalog reads a YAML file overriding the built-in content. Types not
// present in the file keep their defaults.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304: catalog path is controlled by deployment
	if err != nil {
		return nil, fmt.Errorf("read notification catalog %q: %w", path, err)
	}

	var overrides map[domain.NotificationType]CatalogEntry
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse notification catalog %q: %w", path, err)
	}

	catalog := DefaultCatalog()
	for notificationType, entry := range overrides {
		existing := catalog.entries[notificationType]
		if entry.Title != "" {
			existing.Title = entry.Title
		}
		if entry.Priority != "" {
			existing.Priority = entry.Priority
		}
		catalog.entries[notificationType] = existing
	}

	return catalog, nil
}

// Entry returns the content for the given type, falling back to a generic
// entry for unknown types.
func (c *Catalog) Entry(notificationType domain.NotificationType) CatalogEntry {
	if c == nil {
		return CatalogEntry{Title: "Notification", Priority: "normal"}
	}

	if entry, ok := c.entries[notificationType]; ok {
		return entry
	}

	return CatalogEntry{Title: "Notification", Priority: "normal"}
}
