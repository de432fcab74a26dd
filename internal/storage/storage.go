package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Storage persists uploaded originals. Save returns the reference recorded
// as the invoice's file_path.
type Storage interface {
	Save(ctx context.Context, filename string, data []byte, contentType string) (string, error)
}

// ObjectName builds the collision-avoiding name for a stored upload: a random
// unique identifier prefixed to the original filename.
func ObjectName(filename string) string {
	return fmt.Sprintf("%s_%s", uuid.New().String(), filename)
}
