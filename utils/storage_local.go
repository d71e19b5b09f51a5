package utils

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

func exchangeRoot() string {
	root := strings.TrimSpace(os.Getenv("FILE_EXCHANGE_ROOT"))
	if root == "" {
		root = "uploads"
	}
	return root
}

// exchangePath maps a file id to <root>/<file id>. File ids are generated
// server-side, but reject separators anyway so a stored id can never escape
// the exchange root.
func exchangePath(fileId string) (string, error) {
	if fileId == "" {
		return "", errors.New("file id is required")
	}
	if strings.ContainsAny(fileId, `/\`) || fileId != filepath.Base(fileId) {
		return "", fmt.Errorf("invalid file id: %s", fileId)
	}
	return filepath.Join(exchangeRoot(), fileId), nil
}

func saveExchangeFileToDisk(fileId string, r io.Reader) error {
	path, err := exchangePath(fileId)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(exchangeRoot(), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create exchange file: %v", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("could not write exchange file: %v", err)
	}
	return f.Close()
}

func openExchangeFileFromDisk(fileId string) (io.ReadCloser, error) {
	path, err := exchangePath(fileId)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return f, nil
}
