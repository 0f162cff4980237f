// Package erap is the client for the public eRAP violation listing service.
package erap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNetwork covers transport failures and non-2xx responses; the
	// caller may retry. The client itself never retries.
	ErrNetwork = errors.New("erap: network error")
	// ErrParse means the response body was not valid JSON.
	ErrParse = errors.New("erap: malformed response")
)

// NameRef is how eRAP serializes dictionary references (issuing organ,
// penalty measure).
type NameRef struct {
	NameRu string `json:"nameRu"`
	NameKz string `json:"nameKz,omitempty"`
}

// ListingEntry is one violation summary from the paged lookup. Dates and the
// penalty size arrive as strings (the penalty may be a "-" placeholder) and
// are interpreted by the ingestion pipeline, not here.
type ListingEntry struct {
	CaseNumber     string  `json:"caseNumber"`
	RID            string  `json:"rid"`
	CommitDate     string  `json:"commitDate"`
	DecisionDate   string  `json:"decisionDate"`
	PenaltySize    string  `json:"penaltySize"`
	Organ          NameRef `json:"organ"`
	PenaltyMeasure NameRef `json:"penaltyMeasure"`
	Status         string  `json:"status"`
}

type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// FetchListing retrieves one page of violation summaries for a vehicle,
// identified by plate number and technical-passport id.
func (c *Client) FetchListing(ctx context.Context, plate, techPassport string, page, limit int) ([]ListingEntry, error) {
	q := url.Values{}
	q.Set("pageNum", fmt.Sprint(page))
	q.Set("limit", fmt.Sprint(limit))
	q.Set("plateNumber", plate)
	q.Set("srtsNum", techPassport)
	q.Set("orderBy", "desc")

	reqURL := c.baseURL + "/fine/?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	c.log.Debug().Str("url", reqURL).Msg("requesting fines listing")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: listing returned status %d", ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	var entries []ListingEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	c.log.Info().Int("count", len(entries)).Str("plate", plate).Msg("retrieved fines listing")
	return entries, nil
}
