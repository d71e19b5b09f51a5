package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// getGoogleClient initializes a Google Cloud Storage client.
// Prefers ADC (service account / GOOGLE_APPLICATION_CREDENTIALS); explicit
// JSON can be supplied locally via GCS_CREDENTIALS_JSON.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		client, err := storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, err
		}
		return client, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func gcsBucket() (string, error) {
	bucketName := os.Getenv("GCS_BUCKET")
	if bucketName == "" {
		return "", errors.New("GCS_BUCKET is required")
	}
	return bucketName, nil
}

func saveExchangeFileToGCS(ctx context.Context, fileId string, r io.Reader) error {
	bucketName, err := gcsBucket()
	if err != nil {
		return err
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	wc := client.Bucket(bucketName).Object(fileId).NewWriter(ctx)
	wc.ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	if _, err := io.Copy(wc, r); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to upload file to Google Cloud Storage: %v", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %v", err)
	}

	return nil
}

type gcsReadCloser struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReadCloser) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

func openExchangeFileFromGCS(ctx context.Context, fileId string) (io.ReadCloser, error) {
	bucketName, err := gcsBucket()
	if err != nil {
		return nil, err
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}

	rc, err := client.Bucket(bucketName).Object(fileId).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		if err == storage.ErrObjectNotExist {
			return nil, ErrorRecordNotFound
		}
		return nil, err
	}
	return &gcsReadCloser{Reader: rc, client: client}, nil
}
