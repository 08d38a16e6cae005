package datasource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// Downloader fetches result and pedigree CSV archives into the raw data
// directory that the Schema Normalizer reads from.
type Downloader struct {
	client  *RateLimitedHTTPClient
	baseURL string
	apiKey  string
	logger  *logrus.Logger
}

// NewDownloader creates a downloader against the given provider base URL.
func NewDownloader(client *RateLimitedHTTPClient, baseURL, apiKey string, logger *logrus.Logger) *Downloader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Downloader{
		client:  client,
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// FetchResults downloads the result archive for a single year into rawDir as
// results_<year>.csv. Existing files are overwritten; the normalizer dedupes
// on reload so a partial re-download is safe.
func (d *Downloader) FetchResults(ctx context.Context, year int, rawDir string) (string, error) {
	url := fmt.Sprintf("%s/archives/results/%d.csv", d.baseURL, year)
	dest := filepath.Join(rawDir, fmt.Sprintf("results_%d.csv", year))
	if err := d.fetchFile(ctx, url, dest); err != nil {
		return "", fmt.Errorf("failed to fetch results for %d: %w", year, err)
	}
	return dest, nil
}

// FetchPedigree downloads the pedigree table to the given path.
func (d *Downloader) FetchPedigree(ctx context.Context, dest string) error {
	url := fmt.Sprintf("%s/archives/pedigree.csv", d.baseURL)
	if err := d.fetchFile(ctx, url, dest); err != nil {
		return fmt.Errorf("failed to fetch pedigree: %w", err)
	}
	return nil
}

// FetchRange downloads result archives for each year in [from, to] and
// returns the paths written. A failed year aborts the whole range.
func (d *Downloader) FetchRange(ctx context.Context, from, to int, rawDir string) ([]string, error) {
	if from > to {
		return nil, fmt.Errorf("invalid year range %d-%d", from, to)
	}
	paths := make([]string, 0, to-from+1)
	for year := from; year <= to; year++ {
		path, err := d.FetchResults(ctx, year, rawDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (d *Downloader) fetchFile(ctx context.Context, url, dest string) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if d.apiKey != "" {
		req.Header.Set("X-API-Key", d.apiKey)
	}

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}

	// Write to a temp file and rename so a failed download never leaves a
	// truncated CSV for the normalizer to pick up.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return err
	}
	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	d.logger.WithFields(logrus.Fields{
		"url":      url,
		"dest":     dest,
		"bytes":    written,
		"duration": time.Since(start).String(),
	}).Info("Downloaded archive")
	return nil
}
