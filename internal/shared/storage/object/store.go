package object

import (
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// Area names one of the fixed storage areas.
type Area string

const (
	Uploads   Area = "uploads"
	Results   Area = "results"
	Documents Area = "documents"
)

// ErrInvalidKey is returned for names that would escape their area.
var ErrInvalidKey = errors.New("invalid storage key")

// ObjectStore defines the contract for saving and retrieving stored files.
type ObjectStore interface {
	SaveUpload(ctx context.Context, fileName string, r io.Reader) (storedName string, sizeBytes int64, mimeType string, err error)
	Save(ctx context.Context, area Area, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, area Area, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, area Area, name string) error
	Path(area Area, name string) (string, error)
	Dir(area Area) string
}
