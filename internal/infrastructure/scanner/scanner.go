// Package scanner obtains project metadata for a repository. The analysis
// itself happens elsewhere; scanners only fetch and decode its result.
package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/launchdeck/launchdeck/internal/domain/project"
)

// ErrUnsupported is returned for an unknown scanner kind.
var ErrUnsupported = errors.New("scanner: unsupported kind")

// Scanner returns the detected metadata of a repository.
type Scanner interface {
	Scan(ctx context.Context, repo string) (*project.Metadata, error)
}

// Config selects and configures a scanner.
type Config struct {
	Kind string `mapstructure:"kind"`
	Path string `mapstructure:"path"`
	URL  string `mapstructure:"url"`
	// Token is sent as a bearer token to the http scanner.
	Token string `mapstructure:"token"`
}

// New creates the scanner selected by cfg.Kind.
func New(cfg Config) (Scanner, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "file":
		return NewFileScanner(cfg.Path), nil
	case "http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http scanner: url is required")
		}
		return NewHTTPScanner(cfg.URL, HTTPOptions{Token: cfg.Token}), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, cfg.Kind)
	}
}

// MetadataFiles are the names looked up when a scan points at a directory.
var MetadataFiles = []string{"launchdeck.scan.yaml", "launchdeck.scan.yml", "launchdeck.scan.json"}

// FileScanner reads metadata written by an offline analysis, as YAML or
// JSON.
type FileScanner struct {
	root string
}

// NewFileScanner creates a file scanner. Relative repo paths are resolved
// against root.
func NewFileScanner(root string) *FileScanner {
	return &FileScanner{root: root}
}

// Scan reads repo as a metadata file, or as a directory containing one of
// MetadataFiles.
func (s *FileScanner) Scan(ctx context.Context, repo string) (*project.Metadata, error) {
	path := repo
	if s.root != "" && !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		found := ""
		for _, name := range MetadataFiles {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				found = candidate
				break
			}
		}
		if found == "" {
			return nil, fmt.Errorf("no metadata file found in %s", path)
		}
		path = found
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Decode(data)
}

// Decode parses metadata from YAML or JSON.
func Decode(data []byte) (*project.Metadata, error) {
	var m project.Metadata
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	return &m, nil
}

// HTTPOptions configure an HTTPScanner. Zero values select defaults.
type HTTPOptions struct {
	Client *http.Client
	// RequestsPerSecond limits how often the analysis service is called.
	RequestsPerSecond float64
	Burst             int
	Token             string
}

// HTTPScanner asks a remote analysis service for metadata.
type HTTPScanner struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	token   string
}

// NewHTTPScanner creates a scanner posting to url.
func NewHTTPScanner(url string, opts HTTPOptions) *HTTPScanner {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 2 * time.Minute}
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 3
	}
	return &HTTPScanner{
		url:     url,
		client:  opts.Client,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		token:   opts.Token,
	}
}

type scanRequest struct {
	RepoURL string `json:"repoUrl"`
}

func (s *HTTPScanner) Scan(ctx context.Context, repo string) (*project.Metadata, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scan rate limited: %w", err)
	}

	body, err := json.Marshal(scanRequest{RepoURL: repo})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read scan response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scan failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var m project.Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode scan response: %w", err)
	}
	return &m, nil
}
