package hrsip

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/carbocation/pfx"
)

// IsGoogleStoragePath reports whether path points at a Google Storage object.
func IsGoogleStoragePath(path string) bool {
	return strings.HasPrefix(path, "gs://")
}

// SplitGoogleStoragePath detects the bucket and the path to the actual object.
func SplitGoogleStoragePath(path string) (bucket, object string, err error) {
	pathParts := strings.SplitN(strings.TrimPrefix(path, "gs://"), "/", 2)
	if len(pathParts) != 2 || pathParts[0] == "" || pathParts[1] == "" {
		return "", "", fmt.Errorf("Tried to split your google storage path into bucket and object, but got %d parts: %v", len(pathParts), pathParts)
	}

	return pathParts[0], pathParts[1], nil
}

// MaybeOpenFromGoogleStorage opens gs:// paths through client and everything
// else from the local filesystem (with ~ expanded). client may be nil when no
// gs:// paths are in play.
func MaybeOpenFromGoogleStorage(ctx context.Context, path string, client *storage.Client) (io.ReadCloser, error) {
	if IsGoogleStoragePath(path) {
		if client == nil {
			return nil, fmt.Errorf("%s: a Google Storage client is required for gs:// paths", path)
		}

		bucketName, pathName, err := SplitGoogleStoragePath(path)
		if err != nil {
			return nil, err
		}

		rdr, err := client.Bucket(bucketName).Object(pathName).NewReader(ctx)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("%s: %w", path, err))
		}

		return rdr, nil
	}

	f, err := os.Open(ExpandHome(path))
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}

// MaybeCreateOnGoogleStorage is the write-side counterpart of
// MaybeOpenFromGoogleStorage. For gs:// paths the object is only committed once
// Close returns without error.
func MaybeCreateOnGoogleStorage(ctx context.Context, path string, client *storage.Client) (io.WriteCloser, error) {
	if IsGoogleStoragePath(path) {
		if client == nil {
			return nil, fmt.Errorf("%s: a Google Storage client is required for gs:// paths", path)
		}

		bucketName, pathName, err := SplitGoogleStoragePath(path)
		if err != nil {
			return nil, err
		}

		w := client.Bucket(bucketName).Object(pathName).NewWriter(ctx)
		w.ContentType = "text/tab-separated-values"

		return w, nil
	}

	f, err := os.Create(ExpandHome(path))
	if err != nil {
		return nil, pfx.Err(err)
	}

	return f, nil
}

// ReadTable reads a whole (possibly compressed, possibly remote) delimited
// table into memory and reports its most likely delimiter.
func ReadTable(ctx context.Context, path string, client *storage.Client) ([]byte, rune, error) {
	rc, err := MaybeOpenFromGoogleStorage(ctx, path, client)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	r, err := MaybeDecompress(rc)
	if err != nil {
		return nil, 0, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, pfx.Err(fmt.Errorf("%s: %w", path, err))
	}

	return data, DetermineDelimiterBytes(data), nil
}

// NeedsGoogleStorage reports whether any of paths is a gs:// path, which tells
// a binary whether it must bother constructing a storage client.
func NeedsGoogleStorage(paths ...string) bool {
	for _, path := range paths {
		if IsGoogleStoragePath(path) {
			return true
		}
	}

	return false
}
