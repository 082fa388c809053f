package records

import (
	"fmt"

	"arksync/internal/localstore"
	"arksync/internal/reconcile"
	"arksync/pkg/domain"
)

// Dump is a full copy of every synchronized collection, soft-deleted records
// included. Session credentials are left out.
type Dump struct {
	Organization         *domain.Organization    `json:"organization,omitempty"`
	PartnerOrganizations []domain.Organization   `json:"partnerOrganizations"`
	Users                []domain.User           `json:"users"`
	Projects             []domain.Project        `json:"projects"`
	Species              []domain.Species        `json:"species"`
	Individuals          []domain.Individual     `json:"individuals"`
	BreedingEvents       []domain.BreedingEvent  `json:"breedingEvents"`
	Loans                []domain.BreedingLoan   `json:"breedingLoans"`
	Partnerships         []domain.Partnership    `json:"partnerships"`
	Languages            []domain.LanguageConfig `json:"languages"`
	Settings             domain.SystemSettings   `json:"settings"`
	CurrentProject       string                  `json:"currentProject,omitempty"`
}

func raw[T any](r *Records, c domain.Collection) []T {
	v := localstore.Get[[]T](r.store, string(c), nil)
	if v == nil {
		return []T{}
	}
	return v
}

// Snapshot copies the local state without filtering.
func (r *Records) Snapshot() Dump {
	return Dump{
		Organization:         localstore.Get[*domain.Organization](r.store, string(domain.CollectionOrganization), nil),
		PartnerOrganizations: raw[domain.Organization](r, domain.CollectionPartnerOrganizations),
		Users:                raw[domain.User](r, domain.CollectionUsers),
		Projects:             raw[domain.Project](r, domain.CollectionProjects),
		Species:              raw[domain.Species](r, domain.CollectionSpecies),
		Individuals:          raw[domain.Individual](r, domain.CollectionIndividuals),
		BreedingEvents:       raw[domain.BreedingEvent](r, domain.CollectionBreedingEvents),
		Loans:                raw[domain.BreedingLoan](r, domain.CollectionLoans),
		Partnerships:         raw[domain.Partnership](r, domain.CollectionPartnerships),
		Languages:            raw[domain.LanguageConfig](r, domain.CollectionLanguages),
		Settings:             r.Settings(),
		CurrentProject:       r.CurrentProject(),
	}
}

// Restore overwrites the local state with d without pushing anything.
// Collections missing from d are left as they are.
func (r *Records) Restore(d Dump) error {
	settings := d.Settings
	snap := reconcile.Snapshot{
		Organization:         d.Organization,
		PartnerOrganizations: d.PartnerOrganizations,
		Users:                d.Users,
		Projects:             d.Projects,
		Species:              d.Species,
		Individuals:          d.Individuals,
		BreedingEvents:       d.BreedingEvents,
		Loans:                d.Loans,
		Partnerships:         d.Partnerships,
		Languages:            d.Languages,
		Settings:             &settings,
	}
	if _, err := reconcile.Apply(snap, r); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	if d.CurrentProject != "" {
		return r.SaveCurrentProject(d.CurrentProject)
	}
	return nil
}
