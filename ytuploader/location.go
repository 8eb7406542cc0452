package ytuploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"cloud.google.com/go/storage"
)

// The URL scheme that represents a Google Storage Bucket object.
const gsScheme = "gs://"

// ErrLocationNotExist is returned when a file or bucket object is absent.
var ErrLocationNotExist = errors.New("location does not exist")

// isBucketLocation reports whether loc names a Google Storage object rather
// than a local file.
func isBucketLocation(loc string) bool {
	return strings.HasPrefix(loc, gsScheme)
}

// googleStorageAddr splits gs://<bucket>/<object> into its parts.
func googleStorageAddr(addr string) (bucket, object string, err error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("url does not have gs scheme: %s", u)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("invalid GSB URL %s", addr)
	}
	return u.Host, object, nil
}

// readLocation returns the contents of a local file or bucket object.
func readLocation(ctx context.Context, loc string) ([]byte, error) {
	if !isBucketLocation(loc) {
		b, err := os.ReadFile(loc)
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrLocationNotExist, loc)
		}
		return b, err
	}

	bkt, obj, err := googleStorageAddr(loc)
	if err != nil {
		return nil, fmt.Errorf("could not parse uri: %w", err)
	}
	clt, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not create storage client: %w", err)
	}
	defer clt.Close()

	r, err := clt.Bucket(bkt).Object(obj).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrLocationNotExist, loc)
	}
	if err != nil {
		return nil, fmt.Errorf("could not create reader for %s: %w", loc, err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", loc, err)
	}
	return b, nil
}

// writeLocation overwrites a local file (atomically) or a bucket object.
func writeLocation(ctx context.Context, loc string, data []byte, perm os.FileMode) error {
	if !isBucketLocation(loc) {
		return writeFileAtomic(loc, data, perm)
	}

	bkt, obj, err := googleStorageAddr(loc)
	if err != nil {
		return fmt.Errorf("could not parse uri: %w", err)
	}
	clt, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("could not create storage client: %w", err)
	}
	defer clt.Close()

	w := clt.Bucket(bkt).Object(obj).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("could not write object %s: %w", loc, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("could not close written object %s: %w", loc, err)
	}
	return nil
}
