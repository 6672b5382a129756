package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/maltedev/amazon-product-scraper/internal/models"
)

const (
	ProductInfoFileName = "product-info.json"
	ImagesDirName       = "images"

	downloadChunkSize = 32 * 1024
)

var (
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	ErrIOFailure     = errors.New("io failure")
)

// CreateDirectory creates path and any missing parents. An existing path is
// removed first when overwrite is set; otherwise it is left untouched and
// ErrAlreadyExists is returned.
func CreateDirectory(path string, overwrite bool) error {
	if path == "" {
		return fmt.Errorf("%w: path cannot be empty", ErrInvalidInput)
	}

	if _, err := os.Stat(path); err == nil {
		if !overwrite {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
		}
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("%w: remove %s: %w", ErrIOFailure, path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: stat %s: %w", ErrIOFailure, path, err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIOFailure, path, err)
	}

	return nil
}

// InferExtension returns the lower-cased text after the last dot of url,
// ignoring any query string, or "" when there is no dot.
func InferExtension(url string) string {
	if i := strings.LastIndex(url, "?"); i >= 0 {
		url = url[:i]
	}

	i := strings.LastIndex(url, ".")
	if i < 0 {
		return ""
	}

	return strings.ToLower(url[i+1:])
}

// Opener starts a streamed GET and fails for non-success responses.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

type Downloader struct {
	opener Opener
}

func NewDownloader(opener Opener) *Downloader {
	return &Downloader{opener: opener}
}

// DownloadBinary streams url into dir/fileName. A partially written file is
// left in place if the transfer fails midway.
func (d *Downloader) DownloadBinary(ctx context.Context, url, dir, fileName string) error {
	if fileName == "" {
		return fmt.Errorf("%w: file name cannot be empty", ErrInvalidInput)
	}

	body, err := d.opener.Open(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	path := filepath.Join(dir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", ErrIOFailure, path, err)
	}
	defer f.Close()

	buf := make([]byte, downloadChunkSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return fmt.Errorf("%w: write %s: %w", ErrIOFailure, path, err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("failed to read %s: %w", url, readErr)
		}
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrIOFailure, path, err)
	}

	return nil
}

// ReadLines returns the lines of path in order. Each line keeps its trailing
// newline; the last one may not have it.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrIOFailure, path, err)
	}
	defer f.Close()

	var lines []string
	r := bufio.NewReader(f)
	for {
		line, err := r.ReadString('\n')
		if line != "" {
			lines = append(lines, line)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %w", ErrIOFailure, path, err)
		}
	}

	return lines, nil
}

// WriteRecord writes record as indented JSON to dir/product-info.json and
// returns the file path.
func WriteRecord(dir string, record *models.ProductRecord) (string, error) {
	data, err := MarshalRecord(record)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, ProductInfoFileName)

	// Write to temp file first for atomicity
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o644); err != nil {
		return "", fmt.Errorf("%w: write %s: %w", ErrIOFailure, tmpFile, err)
	}

	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return "", fmt.Errorf("%w: rename %s: %w", ErrIOFailure, tmpFile, err)
	}

	return path, nil
}

// MarshalRecord renders record with a two-space indent and without escaping
// HTML or non-ASCII characters.
func MarshalRecord(record *models.ProductRecord) ([]byte, error) {
	if record.ImageURLs == nil {
		cp := *record
		cp.ImageURLs = make([]string, 0)
		record = &cp
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(record); err != nil {
		return nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func ReadRecord(dir string) (*models.ProductRecord, error) {
	path := filepath.Join(dir, ProductInfoFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrIOFailure, path, err)
	}

	var record models.ProductRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return &record, nil
}
