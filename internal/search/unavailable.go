package search

import (
	"context"

	"github.com/memmcp/memmcp/internal/errors"
)

// Unavailable stands in for the engine when the service runs in
// file-only mode without a database.
type Unavailable struct{}

var _ SearchEngine = Unavailable{}

// Search always reports that the index store is not configured.
func (Unavailable) Search(ctx context.Context, q Query) (*Results, error) {
	return nil, errors.New(errors.KindStorageUnavailable,
		"search requires the database index; set USE_DATABASE=true and configure DATABASE_URL")
}
