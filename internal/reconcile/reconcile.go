// Package reconcile holds the rules for merging a pulled remote snapshot into
// the local cache: soft-delete filtering, the mine/partner organization split,
// pull failure classification and the per-collection overwrite.
package reconcile

import (
	"errors"
	"fmt"
	"strings"

	"arksync/internal/transport"
	"arksync/pkg/domain"
)

// Active returns the records whose soft-delete flag is not set. The result is
// never nil.
func Active[T domain.Deletable](in []T) []T {
	out := make([]T, 0, len(in))
	for _, v := range in {
		if !v.IsDeleted() {
			out = append(out, v)
		}
	}
	return out
}

// SplitOrganizations separates the organization whose id is mineID from every
// other organization. mine is nil when mineID is blank or not listed.
func SplitOrganizations(all []domain.Organization, mineID string) (mine *domain.Organization, partners []domain.Organization) {
	partners = make([]domain.Organization, 0, len(all))
	for _, org := range all {
		if mineID != "" && org.ID == mineID && mine == nil {
			o := org
			mine = &o
			continue
		}
		partners = append(partners, org)
	}
	return mine, partners
}

// Failure classifies why a pull did not succeed.
type Failure string

const (
	FailureNone Failure = ""
	// FailureSchemaNotProvisioned means the remote store answered but its
	// tables or grants are missing; retrying will not help.
	FailureSchemaNotProvisioned Failure = "schema_not_provisioned"
	FailureNetwork              Failure = "network"
	FailureServer               Failure = "server"
)

var schemaMarkers = []string{
	"permission denied",
	"42501",
	"42p01",
	"schema",
	"undefined_table",
}

var networkMarkers = []string{
	"connection refused",
	"connection reset",
	"no such host",
	"timeout",
	"timed out",
	"network",
	"offline",
	"unreachable",
}

// Classify maps a failure message onto the pull failure taxonomy.
func Classify(message string) Failure {
	msg := strings.ToLower(message)
	if msg == "" {
		return FailureServer
	}
	for _, m := range schemaMarkers {
		if strings.Contains(msg, m) {
			return FailureSchemaNotProvisioned
		}
	}
	if strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist") {
		return FailureSchemaNotProvisioned
	}
	for _, m := range networkMarkers {
		if strings.Contains(msg, m) {
			return FailureNetwork
		}
	}
	return FailureServer
}

// ClassifyError is Classify with the transport error kind taken into account.
func ClassifyError(err error) Failure {
	if err == nil {
		return FailureNone
	}
	if f := Classify(err.Error()); f == FailureSchemaNotProvisioned {
		return f
	}
	if errors.Is(err, transport.ErrNetwork) {
		return FailureNetwork
	}
	return Classify(err.Error())
}

// Snapshot is a pulled remote state in domain shape. A nil field means the
// collection was absent from the response and must be left alone locally.
type Snapshot struct {
	Organization         *domain.Organization
	PartnerOrganizations []domain.Organization
	Users                []domain.User
	Projects             []domain.Project
	Species              []domain.Species
	Individuals          []domain.Individual
	BreedingEvents       []domain.BreedingEvent
	Loans                []domain.BreedingLoan
	Partnerships         []domain.Partnership
	Languages            []domain.LanguageConfig
	Settings             *domain.SystemSettings
}

// Sink receives reconciled collections. The records package implements it.
type Sink interface {
	SaveOrganization(v domain.Organization, skipSync bool) error
	SavePartnerOrganizations(v []domain.Organization, skipSync bool) error
	SaveUsers(v []domain.User, skipSync bool) error
	SaveProjects(v []domain.Project, skipSync bool) error
	SaveSpecies(v []domain.Species, skipSync bool) error
	SaveIndividuals(v []domain.Individual, skipSync bool) error
	SaveBreedingEvents(v []domain.BreedingEvent, skipSync bool) error
	SaveLoans(v []domain.BreedingLoan, skipSync bool) error
	SavePartnerships(v []domain.Partnership, skipSync bool) error
	SaveLanguages(v []domain.LanguageConfig, skipSync bool) error
	SaveSettings(v domain.SystemSettings, skipSync bool) error
}

// Apply overwrites every collection present in snap through sink with sync
// suppressed, so nothing just pulled is pushed back. Session and the current
// project selection are never touched. A failing collection does not stop the
// others; the returned list names the collections written.
func Apply(snap Snapshot, sink Sink) ([]domain.Collection, error) {
	var (
		applied []domain.Collection
		errs    []error
	)
	step := func(c domain.Collection, present bool, save func() error) {
		if !present {
			return
		}
		if err := save(); err != nil {
			errs = append(errs, fmt.Errorf("apply %s: %w", c, err))
			return
		}
		applied = append(applied, c)
	}

	step(domain.CollectionOrganization, snap.Organization != nil, func() error {
		return sink.SaveOrganization(*snap.Organization, true)
	})
	step(domain.CollectionPartnerOrganizations, snap.PartnerOrganizations != nil, func() error {
		return sink.SavePartnerOrganizations(snap.PartnerOrganizations, true)
	})
	step(domain.CollectionUsers, snap.Users != nil, func() error { return sink.SaveUsers(snap.Users, true) })
	step(domain.CollectionProjects, snap.Projects != nil, func() error { return sink.SaveProjects(snap.Projects, true) })
	step(domain.CollectionSpecies, snap.Species != nil, func() error { return sink.SaveSpecies(snap.Species, true) })
	step(domain.CollectionIndividuals, snap.Individuals != nil, func() error {
		return sink.SaveIndividuals(snap.Individuals, true)
	})
	step(domain.CollectionBreedingEvents, snap.BreedingEvents != nil, func() error {
		return sink.SaveBreedingEvents(snap.BreedingEvents, true)
	})
	step(domain.CollectionLoans, snap.Loans != nil, func() error { return sink.SaveLoans(snap.Loans, true) })
	step(domain.CollectionPartnerships, snap.Partnerships != nil, func() error {
		return sink.SavePartnerships(snap.Partnerships, true)
	})
	step(domain.CollectionLanguages, snap.Languages != nil, func() error {
		return sink.SaveLanguages(snap.Languages, true)
	})
	step(domain.CollectionSettings, snap.Settings != nil, func() error {
		return sink.SaveSettings(*snap.Settings, true)
	})
	return applied, errors.Join(errs...)
}
