// Package fetch retrieves remote requirements files referenced by URL
// includes, with a local cache and parallel workers.
package fetch

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sync"
)

// Requirements files are small text; anything larger than this is not one.
const maxFileSize = 4 << 20

// Job represents one file to fetch.
type Job struct {
	URL      string
	DestPath string
}

// Result represents a fetch result.
type Result struct {
	Job   Job
	Error error
}

// Fetcher downloads requirements files over HTTP into a cache directory.
type Fetcher struct {
	workers  int
	cacheDir string
	client   *http.Client
}

// NewFetcher creates a fetcher with the specified number of workers.
func NewFetcher(workers int, cacheDir string) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		workers:  workers,
		cacheDir: cacheDir,
		client:   &http.Client{},
	}
}

// CacheDir returns the cache directory.
func (f *Fetcher) CacheDir() string {
	return f.cacheDir
}

// CachePath returns the local cache path for a URL. The path embeds a
// digest of the URL so distinct URLs with the same base name do not
// collide.
func (f *Fetcher) CachePath(url string) string {
	sum := sha256.Sum256([]byte(url))
	base := path.Base(url)
	if base == "." || base == "/" || base == "" {
		base = "requirements.txt"
	}
	return filepath.Join(f.cacheDir, fmt.Sprintf("%x-%s", sum[:8], base))
}

// Fetch downloads a single URL into the cache and returns the local path.
// Cached files are reused.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	dest := f.CachePath(url)
	if err := f.fetchOne(ctx, Job{URL: url, DestPath: dest}); err != nil {
		return "", err
	}
	return dest, nil
}

// FetchAll downloads multiple files in parallel.
func (f *Fetcher) FetchAll(ctx context.Context, jobs []Job) []Result {
	if err := os.MkdirAll(f.cacheDir, 0755); err != nil {
		results := make([]Result, len(jobs))
		for i, job := range jobs {
			results[i] = Result{Job: job, Error: err}
		}
		return results
	}

	jobChan := make(chan Job, len(jobs))
	resultChan := make(chan Result, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < f.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				err := f.fetchOne(ctx, job)
				resultChan <- Result{Job: job, Error: err}
			}
		}()
	}

	for _, job := range jobs {
		jobChan <- job
	}
	close(jobChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]Result, 0, len(jobs))
	for result := range resultChan {
		results = append(results, result)
	}

	return results
}

func (f *Fetcher) fetchOne(ctx context.Context, job Job) error {
	// Check if already cached
	if _, err := os.Stat(job.DestPath); err == nil {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(job.DestPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", job.URL, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", job.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching %s: HTTP %d", job.URL, resp.StatusCode)
	}

	// Write to temp file first, then rename
	tmpPath := job.DestPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	n, err := io.Copy(out, io.LimitReader(resp.Body, maxFileSize+1))
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", err)
	}
	if n > maxFileSize {
		os.Remove(tmpPath)
		return fmt.Errorf("fetching %s: response exceeds %d bytes", job.URL, maxFileSize)
	}

	if err := os.Rename(tmpPath, job.DestPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}

	return nil
}
