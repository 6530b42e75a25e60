package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"filing-processor/internal/domain"
)

// PostgresCatalog reads form templates from the shared database. The full
// template set is small and rarely changes, so it is cached with a TTL and
// refreshed once before reporting a form type as unknown.
type PostgresCatalog struct {
	db  *sql.DB
	ttl time.Duration

	mu        sync.RWMutex
	byID      map[string]domain.FormTemplate
	fetchedAt time.Time
}

func NewPostgresCatalog(db *sql.DB, ttl time.Duration) *PostgresCatalog {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &PostgresCatalog{db: db, ttl: ttl}
}

// FindByID resolves the template for a form type. An unknown form type is
// reported as domain.ErrNotFound.
func (c *PostgresCatalog) FindByID(ctx context.Context, formType string) (domain.FormTemplate, error) {
	entry, err := c.load(ctx, false)
	if err != nil {
		return domain.FormTemplate{}, err
	}
	if tmpl, ok := entry[formType]; ok {
		return tmpl, nil
	}

	// Force one refresh before giving up; the catalog may have gained the
	// form type since the last fetch.
	entry, err = c.load(ctx, true)
	if err != nil {
		return domain.FormTemplate{}, err
	}
	if tmpl, ok := entry[formType]; ok {
		return tmpl, nil
	}
	return domain.FormTemplate{}, fmt.Errorf("form type %q: %w", formType, domain.ErrNotFound)
}

func (c *PostgresCatalog) load(ctx context.Context, force bool) (map[string]domain.FormTemplate, error) {
	c.mu.RLock()
	cached := c.byID
	fetchedAt := c.fetchedAt
	c.mu.RUnlock()

	if cached != nil && !force && time.Since(fetchedAt) < c.ttl {
		return cached, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.byID != nil && !force && time.Since(c.fetchedAt) < c.ttl {
		return c.byID, nil
	}

	rows, err := c.db.QueryContext(ctx, `
		SELECT form_type, fes_enabled, COALESCE(fes_doc_type, ''), same_day, form_category
		FROM form_templates
	`)
	if err != nil {
		return nil, fmt.Errorf("load form templates: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]domain.FormTemplate)
	for rows.Next() {
		var tmpl domain.FormTemplate
		if err := rows.Scan(&tmpl.ID, &tmpl.FesEnabled, &tmpl.FesDocType, &tmpl.SameDay, &tmpl.Category); err != nil {
			return nil, fmt.Errorf("scan form template: %w", err)
		}
		byID[tmpl.ID] = tmpl
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	c.byID = byID
	c.fetchedAt = time.Now()
	return byID, nil
}
