package health

import (
	"context"
	"errors"

	"github.com/onnwee/legvotes/internal/legdata"
)

// ErrEmptyCatalog is returned when the catalog loads but holds no legislators.
var ErrEmptyCatalog = errors.New("catalog has no legislators")

// CatalogChecker reports whether the search catalog can be loaded. A fresh
// deployment is not ready until the loader has produced data.
type CatalogChecker struct {
	source legdata.Source
}

// NewCatalogChecker creates a checker for source.
func NewCatalogChecker(source legdata.Source) *CatalogChecker {
	return &CatalogChecker{source: source}
}

// HealthCheck loads the catalog.
func (c *CatalogChecker) HealthCheck(ctx context.Context) error {
	catalog, err := c.source.Catalog(ctx)
	if err != nil {
		return err
	}
	if len(catalog.Legislators) == 0 {
		return ErrEmptyCatalog
	}
	return nil
}
