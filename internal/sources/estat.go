package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"

	"trendboard/internal/models"
	"trendboard/internal/validation"
)

const (
	estatName        = models.SourceEStat
	estatPageLimit   = 100000
	estatMaxPages    = 10
	estatTimeClassID = "time"
)

// EStatOptions configures the e-Stat adapter.
type EStatOptions struct {
	BaseURL string
	AppID   string
	Retry   RetryPolicy
	Logger  *slog.Logger
}

// EStat fetches series from the e-Stat getStatsData endpoint.
type EStat struct {
	client *resty.Client
	appID  string
	retry  RetryPolicy
	log    *slog.Logger
}

// NewEStat creates an e-Stat adapter. It returns nil without an app id, which
// leaves e-Stat indicators on seed data.
func NewEStat(opts EStatOptions) *EStat {
	if strings.TrimSpace(opts.AppID) == "" {
		return nil
	}
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.e-stat.go.jp/rest/3.0/app/json"
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

	return &EStat{
		client: client,
		appID:  opts.AppID,
		retry:  retry,
		log:    log.With("component", "estat"),
	}
}

// Name implements Fetcher.
func (e *EStat) Name() string { return estatName }

// FetchSeries implements Fetcher. Pages are followed via NEXT_KEY.
func (e *EStat) FetchSeries(ctx context.Context, spec models.SourceSpec) ([]models.Point, error) {
	if spec.TableID == "" {
		return nil, malformed(estatName, "missing table id")
	}

	var all []models.Point
	start := 1
	for page := 0; page < estatMaxPages; page++ {
		result, err := withRetry(ctx, estatName, e.retry, e.log, func(ctx context.Context) (*estatPage, error) {
			return e.fetchPage(ctx, spec, start)
		})
		if err != nil {
			return nil, err
		}
		all = append(all, result.points...)
		if result.nextKey <= 0 {
			break
		}
		start = result.nextKey
	}

	if len(all) == 0 {
		return nil, noData(estatName, "table "+spec.TableID+" has no usable values")
	}
	if period, ok := conflictingPeriod(all); ok {
		return nil, malformed(estatName, "period %s has multiple values across pages", period)
	}
	return sortPoints(all), nil
}

func (e *EStat) fetchPage(ctx context.Context, spec models.SourceSpec, start int) (*estatPage, error) {
	params := map[string]string{
		"appId":             e.appID,
		"statsDataId":       spec.TableID,
		"startPosition":     strconv.Itoa(start),
		"limit":             strconv.Itoa(estatPageLimit),
		"metaGetFlg":        "Y",
		"cntGetFlg":         "N",
		"sectionHeaderFlg":  "1",
		"replaceSpChars":    "0",
		"explanationGetFlg": "N",
		"annotationGetFlg":  "N",
	}
	for k, v := range spec.Filters {
		params[estatFilterParam(k)] = v
	}

	resp, err := e.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get("/getStatsData")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &HTTPError{Source: estatName, StatusCode: resp.StatusCode(), Body: truncate(resp.String(), 200)}
	}
	return parseEStat(resp.Body(), spec.Filters)
}

// estatFilterParam maps a classification id to its query parameter: cat01 -> cdCat01.
func estatFilterParam(classID string) string {
	if classID == "" {
		return classID
	}
	return "cd" + strings.ToUpper(classID[:1]) + classID[1:]
}

// e-Stat response envelope. Several members are a single object when there
// is one element and an array otherwise.

type estatResponse struct {
	GetStatsData *struct {
		Result struct {
			Status   int    `json:"STATUS"`
			ErrorMsg string `json:"ERROR_MSG"`
		} `json:"RESULT"`
		StatisticalData *struct {
			ResultInf struct {
				NextKey int `json:"NEXT_KEY"`
			} `json:"RESULT_INF"`
			ClassInf struct {
				ClassObj oneOrMany[estatClassObj] `json:"CLASS_OBJ"`
			} `json:"CLASS_INF"`
			DataInf *struct {
				Value oneOrMany[estatValue] `json:"VALUE"`
			} `json:"DATA_INF"`
		} `json:"STATISTICAL_DATA"`
	} `json:"GET_STATS_DATA"`
}

type estatClassObj struct {
	ID    string                 `json:"@id"`
	Name  string                 `json:"@name"`
	Class oneOrMany[estatClass] `json:"CLASS"`
}

type estatClass struct {
	Code string `json:"@code"`
	Name string `json:"@name"`
}

// estatValue keeps its attributes generic: the classification set
// (@tab, @cat01, @area, @time, ...) differs per table.
type estatValue map[string]any

func (v estatValue) attr(name string) string {
	s, _ := v["@"+name].(string)
	return s
}

func (v estatValue) raw() (string, bool) {
	switch x := v["$"].(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	}
	return "", false
}

type estatPage struct {
	points  []models.Point
	nextKey int
}

// parseEStat turns one getStatsData page into points, keeping only values
// that match every filter.
func parseEStat(body []byte, filters map[string]string) (*estatPage, error) {
	var resp estatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, malformed(estatName, "decode: %v", err)
	}
	root := resp.GetStatsData
	if root == nil {
		return nil, malformed(estatName, "missing GET_STATS_DATA")
	}
	if root.Result.Status != 0 {
		return nil, &StatusError{Source: estatName, Code: root.Result.Status, Message: root.Result.ErrorMsg}
	}
	data := root.StatisticalData
	if data == nil || data.DataInf == nil {
		return nil, noData(estatName, "missing DATA_INF")
	}

	timeCodes := make(map[string]bool)
	for _, obj := range data.ClassInf.ClassObj {
		if obj.ID != estatTimeClassID {
			continue
		}
		for _, c := range obj.Class {
			timeCodes[c.Code] = true
		}
	}
	if len(timeCodes) == 0 {
		return nil, malformed(estatName, "no time classification")
	}

	page := &estatPage{nextKey: data.ResultInf.NextKey}
	for _, v := range data.DataInf.Value {
		if !matchesFilters(v, filters) {
			continue
		}
		code := v.attr(estatTimeClassID)
		if !timeCodes[code] {
			continue
		}
		raw, ok := v.raw()
		if !ok {
			continue
		}
		value, ok := parseEStatNumber(raw)
		if !ok {
			continue
		}
		period, err := validation.NormalizePeriod(code)
		if err != nil {
			// fiscal-year and multi-month codes have no canonical period
			continue
		}
		page.points = append(page.points, models.Point{Period: period, Value: value})
	}
	if period, ok := conflictingPeriod(page.points); ok {
		return nil, malformed(estatName, "period %s has multiple values; add a filter for the remaining classification", period)
	}
	return page, nil
}

func matchesFilters(v estatValue, filters map[string]string) bool {
	for k, want := range filters {
		if got := v.attr(k); got != "" && got != want {
			return false
		}
	}
	return true
}

// parseEStatNumber parses a cell value. Suppressed and missing cells
// ("-", "…", "***", "x") are not numbers, and neither are NaN or infinities.
func parseEStatNumber(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// oneOrMany decodes either a JSON object or an array of objects.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = nil
		return nil
	}
	if data[0] == '[' {
		var many []T
		if err := json.Unmarshal(data, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("decode single element: %w", err)
	}
	*o = []T{one}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
