// Package defillama loads funding-round records from the DefiLlama raises
// feed, either a local JSON snapshot or the public HTTP endpoint.
package defillama

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"vcscout/internal/domain"
	"vcscout/internal/feed"
)

// rawRaise mirrors the external feed document. The format is read-only input
// defined elsewhere, not authored here.
type rawRaise struct {
	Name           string   `json:"name"`
	Date           int64    `json:"date"`
	Amount         *float64 `json:"amount"`
	Round          string   `json:"round"`
	LeadInvestors  []string `json:"leadInvestors"`
	OtherInvestors []string `json:"otherInvestors"`
	Source         string   `json:"source"`
	Category       string   `json:"category"`
	Sector         string   `json:"sector"`
	Chains         []string `json:"chains"`
	Valuation      *float64 `json:"valuation"`
}

type raisesDocument struct {
	Raises []rawRaise `json:"raises"`
}

// Loader reads DefiLlama raises from a local file when configured, otherwise
// from the HTTP endpoint.
type Loader struct {
	dataFile string
	url      string
	client   *http.Client
}

var _ feed.Loader = (*Loader)(nil)

// NewLoader wires file path, endpoint, and an optional HTTP client.
func NewLoader(dataFile, url string, client *http.Client) *Loader {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Loader{dataFile: dataFile, url: url, client: client}
}

// Name identifies the strategy inside the registry.
func (l *Loader) Name() string {
	return "defillama"
}

// Load reads the feed, filters by the lookback window, and parses each record
// into canonical shape.
func (l *Loader) Load(ctx context.Context, req feed.Request) ([]domain.Raise, error) {
	doc, err := l.fetch(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-req.Lookback).Unix()

	var raises []domain.Raise
	for _, raw := range doc.Raises {
		if req.Lookback > 0 && raw.Date < cutoff {
			continue
		}
		raises = append(raises, parseRaise(raw))
		if req.Limit > 0 && len(raises) >= req.Limit {
			break
		}
	}
	return raises, nil
}

func (l *Loader) fetch(ctx context.Context) (*raisesDocument, error) {
	if l.dataFile != "" {
		if _, err := os.Stat(l.dataFile); err == nil {
			return l.fetchFile()
		}
	}
	if l.url == "" {
		return nil, fmt.Errorf("no feed file or endpoint configured")
	}
	return l.fetchHTTP(ctx)
}

func (l *Loader) fetchFile() (*raisesDocument, error) {
	raw, err := os.ReadFile(l.dataFile)
	if err != nil {
		return nil, fmt.Errorf("read feed file: %w", err)
	}

	var doc raisesDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse feed file: %w", err)
	}
	return &doc, nil
}

func (l *Loader) fetchHTTP(ctx context.Context) (*raisesDocument, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("User-Agent", "vcscout/1.0")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}

	var doc raisesDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse feed body: %w", err)
	}
	return &doc, nil
}

func parseRaise(raw rawRaise) domain.Raise {
	var announced *time.Time
	if raw.Date > 0 {
		t := time.Unix(raw.Date, 0).UTC()
		announced = &t
	}

	investors := make([]string, 0, len(raw.LeadInvestors)+len(raw.OtherInvestors))
	investors = append(investors, raw.LeadInvestors...)
	investors = append(investors, raw.OtherInvestors...)

	return domain.Raise{
		ProjectName: raw.Name,
		Round:       raw.Round,
		AmountUSD:   raw.Amount,
		AnnouncedOn: announced,
		Investors:   investors,
		SourceURL:   raw.Source,
		Category:    raw.Category,
		Sector:      raw.Sector,
		Chains:      raw.Chains,
		Valuation:   raw.Valuation,
	}
}
