// Package document downloads violation notices and keeps their bytes in a
// local content store for audit and re-parsing.
package document

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Acquirer fetches the PDF notice behind a listing reference id. Failures
// are soft from the pipeline's point of view: one record's missing document
// must not block its siblings.
type Acquirer struct {
	baseURL    string
	storageDir string
	http       *http.Client
	log        zerolog.Logger
}

func NewAcquirer(baseURL, storageDir string, timeout time.Duration, log zerolog.Logger) *Acquirer {
	return &Acquirer{
		baseURL:    baseURL,
		storageDir: storageDir,
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Acquire downloads the document for one listing entry and persists it under
// "<case>_<timestamp>.pdf", returning the stored path and the raw bytes.
func (a *Acquirer) Acquire(ctx context.Context, rid, caseNumber string) (string, []byte, error) {
	reqURL := a.baseURL + "/" + rid
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", nil, fmt.Errorf("build document request: %w", err)
	}

	a.log.Debug().Str("url", reqURL).Str("case_number", caseNumber).Msg("downloading document")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("download document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, fmt.Errorf("download document: status %d", resp.StatusCode)
	}

	// Best effort only: the portal occasionally mislabels the content type
	// while still serving a valid PDF.
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "application/pdf") {
		a.log.Warn().Str("content_type", ct).Str("case_number", caseNumber).
			Msg("response does not declare a PDF content type")
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read document body: %w", err)
	}

	name := fmt.Sprintf("%s_%s.pdf", caseNumber, time.Now().UTC().Format("20060102_150405"))
	path, err := a.store(name, data)
	if err != nil {
		return "", nil, err
	}

	a.log.Info().Str("path", path).Str("case_number", caseNumber).Msg("document stored")
	return path, data, nil
}

// StoreUpload persists an operator-uploaded document under a unique name and
// returns its locator.
func (a *Acquirer) StoreUpload(data []byte) (string, error) {
	name := fmt.Sprintf("upload_%s.pdf", uuid.NewString())
	return a.store(name, data)
}

func (a *Acquirer) store(name string, data []byte) (string, error) {
	if err := os.MkdirAll(a.storageDir, 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	path := filepath.Join(a.storageDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return path, nil
}

// ReadText satisfies the pipeline's document reader; it delegates to the
// package-level PDF text extraction.
func (a *Acquirer) ReadText(data []byte) (string, error) {
	return ReadText(data)
}
