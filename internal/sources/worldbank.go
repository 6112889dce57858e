package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"trendboard/internal/models"
	"trendboard/internal/validation"
)

const (
	worldBankName     = models.SourceWorldBank
	worldBankPerPage  = 1000
	worldBankMaxPages = 5
)

// WorldBankOptions configures the World Bank adapter.
type WorldBankOptions struct {
	BaseURL string
	Retry   RetryPolicy
	Logger  *slog.Logger
}

// WorldBank fetches country indicator series from the World Bank v2 API.
type WorldBank struct {
	client *resty.Client
	retry  RetryPolicy
	log    *slog.Logger
}

// NewWorldBank creates a World Bank adapter. No credentials are required.
func NewWorldBank(opts WorldBankOptions) *WorldBank {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.worldbank.org/v2"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	retry := opts.Retry.withDefaults()

	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(retry.Timeout).
		SetHeader("Accept", "application/json")

	return &WorldBank{
		client: client,
		retry:  retry,
		log:    log.With("component", "worldbank"),
	}
}

// Name implements Fetcher.
func (w *WorldBank) Name() string { return worldBankName }

// FetchSeries implements Fetcher.
func (w *WorldBank) FetchSeries(ctx context.Context, spec models.SourceSpec) ([]models.Point, error) {
	if spec.Country == "" || spec.Code == "" {
		return nil, malformed(worldBankName, "missing country or indicator code")
	}

	var all []models.Point
	for page := 1; page <= worldBankMaxPages; page++ {
		result, err := withRetry(ctx, worldBankName, w.retry, w.log, func(ctx context.Context) (*worldBankPage, error) {
			return w.fetchPage(ctx, spec, page)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, result.points...)
		if result.page >= result.pages {
			break
		}
	}

	if len(all) == 0 {
		return nil, noData(worldBankName, spec.Country+"/"+spec.Code+" has no non-null values")
	}
	if period, ok := conflictingPeriod(all); ok {
		return nil, malformed(worldBankName, "period %s has multiple values", period)
	}
	return sortPoints(all), nil
}

func (w *WorldBank) fetchPage(ctx context.Context, spec models.SourceSpec, page int) (*worldBankPage, error) {
	resp, err := w.client.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"country":   spec.Country,
			"indicator": spec.Code,
		}).
		SetQueryParams(map[string]string{
			"format":   "json",
			"per_page": strconv.Itoa(worldBankPerPage),
			"page":     strconv.Itoa(page),
		}).
		Get("/country/{country}/indicator/{indicator}")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &HTTPError{Source: worldBankName, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}
	return parseWorldBank(resp.Body())
}

type worldBankMeta struct {
	Page  flexInt `json:"page"`
	Pages flexInt `json:"pages"`
	Total flexInt `json:"total"`
}

type worldBankMessage struct {
	Message []struct {
		ID    string `json:"id"`
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"message"`
}

type worldBankObservation struct {
	Date  string   `json:"date"`
	Value *float64 `json:"value"`
}

type worldBankPage struct {
	points []models.Point
	page   int
	pages  int
}

// parseWorldBank decodes the two-element [metadata, observations] envelope.
// A one-element array carries an error message instead.
func parseWorldBank(body []byte) (*worldBankPage, error) {
	var envelope []json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, malformed(worldBankName, "decode: %v", err)
	}

	switch len(envelope) {
	case 1:
		var msg worldBankMessage
		if err := json.Unmarshal(envelope[0], &msg); err != nil || len(msg.Message) == 0 {
			return nil, malformed(worldBankName, "unexpected single-element response")
		}
		code, _ := strconv.Atoi(msg.Message[0].ID)
		return nil, &StatusError{Source: worldBankName, Code: code, Message: strings.TrimSpace(msg.Message[0].Key + ": " + msg.Message[0].Value)}
	case 2:
	default:
		return nil, malformed(worldBankName, "expected [metadata, observations], got %d elements", len(envelope))
	}

	var meta worldBankMeta
	if err := json.Unmarshal(envelope[0], &meta); err != nil {
		return nil, malformed(worldBankName, "decode metadata: %v", err)
	}
	if bytes.Equal(bytes.TrimSpace(envelope[1]), []byte("null")) {
		return nil, noData(worldBankName, "observations are null")
	}

	var observations []worldBankObservation
	if err := json.Unmarshal(envelope[1], &observations); err != nil {
		return nil, malformed(worldBankName, "decode observations: %v", err)
	}

	page := &worldBankPage{page: int(meta.Page), pages: int(meta.Pages)}
	for _, o := range observations {
		if o.Value == nil {
			continue
		}
		period, err := validation.NormalizePeriod(o.Date)
		if err != nil {
			return nil, malformed(worldBankName, "date %q: %v", o.Date, err)
		}
		page.points = append(page.points, models.Point{Period: period, Value: *o.Value})
	}
	return page, nil
}

// flexInt accepts a number or a numeric string; the API uses both for paging fields.
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid integer %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}
