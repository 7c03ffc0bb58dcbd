package main

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Decoding rounds applied while checking containment. Two already covers
// double encoding; the extra rounds cost nothing.
const maxDecodeRounds = 4

// ResolvedTarget is the only path ever handed to the filesystem for
// serving. It is built exclusively by resolveTarget, after the containment
// check, and lives for a single request.
type ResolvedTarget struct {
	LocalFilePath string
	ContentType   string
	ETag          string
	LastModified  time.Time
	FileSize      int64
}

// contentTypeFunc maps a file extension (with leading dot) to a MIME type.
// It is injected so the resolver does not own the lookup table.
type contentTypeFunc func(ext string) string

func defaultContentType(ext string) string {
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

// resolveTarget maps a raw request target to a servable file below the
// document root. Directory targets are retried with the configured index
// file appended.
func resolveTarget(rawTarget string, config Config, contentType contentTypeFunc) (ResolvedTarget, error) {
	clean, err := normalizeTarget(rawTarget)
	if err != nil {
		return ResolvedTarget{}, err
	}

	localFilePath := filepath.Join(config.documentRoot, filepath.FromSlash(clean))
	fileInfo, err := os.Stat(localFilePath)
	if err != nil {
		return ResolvedTarget{}, statError(err)
	}

	if fileInfo.IsDir() {
		localFilePath = filepath.Join(localFilePath, config.indexFile)
		fileInfo, err = os.Stat(localFilePath)
		if err != nil {
			return ResolvedTarget{}, statError(err)
		}
	}

	if !fileInfo.Mode().IsRegular() {
		return ResolvedTarget{}, fmt.Errorf("%w: %s is not a regular file", errNotFound, clean)
	}

	etag, err := generateETag(localFilePath, fileInfo.ModTime(), config)
	if err != nil {
		return ResolvedTarget{}, err
	}

	return ResolvedTarget{
		LocalFilePath: localFilePath,
		ContentType:   contentType(filepath.Ext(localFilePath)),
		ETag:          etag,
		LastModified:  fileInfo.ModTime(),
		FileSize:      fileInfo.Size(),
	}, nil
}

func statError(err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %v", errNotFound, err)
	case errors.Is(err, fs.ErrPermission):
		// Forbidden, but maybe don't tell them ?
		return fmt.Errorf("%w: %v", errNotFound, err)
	default:
		return err
	}
}

// normalizeTarget percent-decodes and normalizes a request target purely in
// memory, before any filesystem call. It returns a rooted, cleaned path
// ("/a/b") or a classified failure.
func normalizeTarget(rawTarget string) (string, error) {
	decoded, err := url.PathUnescape(rawTarget)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errBadTarget, err)
	}
	if strings.IndexByte(decoded, 0) >= 0 {
		return "", fmt.Errorf("%w: NUL byte in target", errBadTarget)
	}

	// Containment must hold for the decoded target and for anything further
	// decoding rounds could still turn it into (double encoding).
	probe := decoded
	for i := 0; i < maxDecodeRounds; i++ {
		if escapesRoot(probe) {
			return "", fmt.Errorf("%w: %q", errForbidden, rawTarget)
		}
		next, err := url.PathUnescape(probe)
		if err != nil || next == probe {
			break
		}
		probe = next
	}

	return path.Clean("/" + decoded), nil
}

// escapesRoot reports whether the path climbs above the document root once
// "." and ".." segments are resolved. The check is segment-based: substring
// scans for ".." would reject legitimate names like "notes..txt" and miss
// encoded variants.
func escapesRoot(p string) bool {
	rel := path.Clean("./" + strings.TrimPrefix(p, "/"))
	return rel == ".." || strings.HasPrefix(rel, "../")
}

func generateETag(path string, lastModified time.Time, config Config) (string, error) {
	if config.strongETag {
		// Strong etag, worse performance (since we have to read the file)
		// but more accurate.
		fileContent, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("\"%x\"", getFNVHash(fileContent)), nil
	}
	// Generate an ETag based on the path and the last modified time (weak etag)
	return fmt.Sprintf("W/\"%x\"", getFNVHash([]byte(fmt.Sprintf("%d-%s", lastModified.Unix(), path)))), nil
}
