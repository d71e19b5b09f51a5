package utils

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	StorageProviderLocal = "local"
	StorageProviderGCS   = "gcs"
)

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderLocal
	}
	return provider
}

// SaveExchangeFile persists an uploaded spreadsheet under an opaque file id
// in the configured durable file area. The file id is the only handoff
// between the upload request and the background import worker.
func SaveExchangeFile(ctx context.Context, fileId string, r io.Reader) error {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		return saveExchangeFileToGCS(ctx, fileId, r)
	case StorageProviderLocal:
		return saveExchangeFileToDisk(fileId, r)
	default:
		return fmt.Errorf("unsupported storage provider: %s", GetStorageProvider())
	}
}

// OpenExchangeFile returns a read stream for a previously saved exchange
// file. Callers own the returned ReadCloser and must close it on every path.
func OpenExchangeFile(ctx context.Context, fileId string) (io.ReadCloser, error) {
	switch GetStorageProvider() {
	case StorageProviderGCS:
		return openExchangeFileFromGCS(ctx, fileId)
	case StorageProviderLocal:
		return openExchangeFileFromDisk(fileId)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", GetStorageProvider())
	}
}
