package ports

//go:generate mockgen -source=search.go -destination=mocks/search_mocks.go -package=mocks

import (
	"context"

	"namex/pkg/domain"
)

// SearchIndex keeps the possible-conflicts index in step with the register.
// Only deletions are driven from here; additions are made by the index
// importer once a name is approved.
type SearchIndex interface {
	DeleteDocument(ctx context.Context, core string, nrNum domain.NRNumber) error
}
