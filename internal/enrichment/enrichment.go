// Package enrichment fills missing species metadata from an external
// provider. The provider is best effort: when it fails, times out or knows
// nothing, the species is returned unchanged so a save is never held up.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"arksync/internal/logging"
	"arksync/internal/transport"
	"arksync/pkg/domain"
)

// DefaultTimeout bounds one lookup.
const DefaultTimeout = 10 * time.Second

// SpeciesInfo is what a provider may know about a species. Every field is
// optional.
type SpeciesInfo struct {
	ScientificName     *string  `json:"scientificName"`
	ConservationStatus *string  `json:"conservationStatus"`
	Family             *string  `json:"family"`
	Diet               *string  `json:"diet"`
	Habitat            *string  `json:"habitat"`
	LifespanYears      *float64 `json:"lifespanYears"`
	AverageWeightKg    *float64 `json:"averageWeightKg"`
	ImageURL           *string  `json:"imageUrl"`
}

// Provider looks up a species by common name with optional location context.
// A nil info with a nil error means the provider knows nothing.
type Provider interface {
	Lookup(ctx context.Context, commonName, location string) (*SpeciesInfo, error)
}

// Reader is the transport read path.
type Reader interface {
	Read(ctx context.Context, path string) transport.ReadResult
}

// HTTPProvider queries GET /species on an enrichment service.
type HTTPProvider struct {
	remote Reader
}

func NewHTTPProvider(remote Reader) *HTTPProvider {
	return &HTTPProvider{remote: remote}
}

func (p *HTTPProvider) Lookup(ctx context.Context, commonName, location string) (*SpeciesInfo, error) {
	q := url.Values{"name": {commonName}}
	if location != "" {
		q.Set("location", location)
	}
	res := p.remote.Read(ctx, "/species?"+q.Encode())
	if !res.Success {
		return nil, fmt.Errorf("species lookup: %s", res.Message)
	}
	if len(res.Data) == 0 || string(res.Data) == "null" {
		return nil, nil
	}
	var info SpeciesInfo
	if err := json.Unmarshal(res.Data, &info); err != nil {
		return nil, fmt.Errorf("decode species info: %w", err)
	}
	return &info, nil
}

// Enricher applies provider lookups to species records.
type Enricher struct {
	provider Provider
	timeout  time.Duration
	logger   *zap.Logger
}

// New returns an Enricher. provider may be nil, in which case Enrich is a
// no-op. timeout <= 0 uses DefaultTimeout.
func New(provider Provider, timeout time.Duration, logger *zap.Logger) *Enricher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Enricher{provider: provider, timeout: timeout, logger: logging.OrNop(logger)}
}

// Enrich returns s with empty fields filled from the provider. Fields already
// set are kept.
func (e *Enricher) Enrich(ctx context.Context, s domain.Species, location string) domain.Species {
	if e == nil || e.provider == nil || s.CommonName == "" {
		return s
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	info, err := e.lookup(ctx, s.CommonName, location)
	if err != nil {
		e.logger.Info("species enrichment unavailable", zap.String("species", s.CommonName), zap.Error(err))
		return s
	}
	if info == nil {
		return s
	}
	return Merge(s, *info)
}

func (e *Enricher) lookup(ctx context.Context, name, location string) (info *SpeciesInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info, err = nil, fmt.Errorf("provider panic: %v", r)
		}
	}()
	return e.provider.Lookup(ctx, name, location)
}

// Merge copies every known field of info into the empty fields of s.
func Merge(s domain.Species, info SpeciesInfo) domain.Species {
	fill := func(dst *string, src *string) {
		if *dst == "" && src != nil {
			*dst = *src
		}
	}
	fill(&s.ScientificName, info.ScientificName)
	fill(&s.ConservationStatus, info.ConservationStatus)
	fill(&s.Family, info.Family)
	fill(&s.Diet, info.Diet)
	fill(&s.Habitat, info.Habitat)
	fill(&s.ImageURL, info.ImageURL)
	if s.LifespanYears == nil && info.LifespanYears != nil {
		v := *info.LifespanYears
		s.LifespanYears = &v
	}
	if s.AverageWeightKg == nil && info.AverageWeightKg != nil {
		v := *info.AverageWeightKg
		s.AverageWeightKg = &v
	}
	return s
}
