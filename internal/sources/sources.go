// Package sources fetches observation series from external statistics APIs
// and normalizes them into canonical points.
package sources

import (
	"context"
	"fmt"
	"sort"

	"trendboard/internal/models"
)

// Fetcher fetches one indicator's series from an external source.
type Fetcher interface {
	// Name is the source kind this fetcher serves.
	Name() string
	// FetchSeries returns points ascending by period. Every period is canonical.
	FetchSeries(ctx context.Context, spec models.SourceSpec) ([]models.Point, error)
}

// Registry maps source kinds to configured fetchers. A kind without a fetcher
// (e.g. missing credentials) is unavailable and its indicators use seed data.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry creates a registry from the given fetchers. Nil interface values are ignored.
func NewRegistry(fetchers ...Fetcher) *Registry {
	r := &Registry{fetchers: make(map[string]Fetcher)}
	for _, f := range fetchers {
		if f != nil {
			r.fetchers[f.Name()] = f
		}
	}
	return r
}

// Available reports whether the source kind has a configured fetcher.
func (r *Registry) Available(kind string) bool {
	if r == nil {
		return false
	}
	_, ok := r.fetchers[kind]
	return ok
}

// Fetch dispatches to the fetcher for spec.Kind.
func (r *Registry) Fetch(ctx context.Context, spec models.SourceSpec) ([]models.Point, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, spec.Kind)
	}
	f, ok := r.fetchers[spec.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, spec.Kind)
	}
	return f.FetchSeries(ctx, spec)
}

// conflictingPeriod reports the first period that carries two different values.
func conflictingPeriod(points []models.Point) (string, bool) {
	seen := make(map[string]float64, len(points))
	for _, p := range points {
		if v, ok := seen[p.Period]; ok && v != p.Value {
			return p.Period, true
		}
		seen[p.Period] = p.Value
	}
	return "", false
}

// sortPoints orders points ascending by period and drops exact duplicates.
// Callers reject conflicting periods first.
func sortPoints(points []models.Point) []models.Point {
	byPeriod := make(map[string]models.Point, len(points))
	for _, p := range points {
		byPeriod[p.Period] = p
	}
	out := make([]models.Point, 0, len(byPeriod))
	for _, p := range byPeriod {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out
}
