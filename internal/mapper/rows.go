// Package mapper translates between the camelCase domain records and the
// snake_case rows of the remote record service. Every function is pure and
// total: nil sequences and maps come back empty, blank optional ids become
// SQL null.
package mapper

import (
	"time"

	"arksync/pkg/domain"
)

// OrganizationRow is the remote shape of domain.Organization.
type OrganizationRow struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Country              string `json:"country"`
	City                 string `json:"city"`
	FoundedYear          int    `json:"founded_year"`
	Website              string `json:"website"`
	ContactEmail         string `json:"contact_email"`
	LogoURL              string `json:"logo_url"`
	IsPublic             bool   `json:"is_public"`
	AllowPartnerRequests bool   `json:"allow_partner_requests"`
	IsDeleted            bool   `json:"is_deleted"`
}

// ProjectRow is the remote shape of domain.Project.
type ProjectRow struct {
	ID          string `json:"id"`
	OrgID       string `json:"org_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
	StartDate   string `json:"start_date"`
	Status      string `json:"status"`
	IsDeleted   bool   `json:"is_deleted"`
}

// UserRow is the remote shape of domain.User.
type UserRow struct {
	ID                string   `json:"id"`
	OrgID             *string  `json:"org_id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              string   `json:"role"`
	PasswordHash      string   `json:"password_hash"`
	AllowedProjectIDs []string `json:"allowed_project_ids"`
	IsDeleted         bool     `json:"is_deleted"`
}

// SpeciesRow is the remote shape of domain.Species.
type SpeciesRow struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"project_id"`
	CommonName         string   `json:"common_name"`
	ScientificName     string   `json:"scientific_name"`
	ConservationStatus string   `json:"conservation_status"`
	Family             string   `json:"family"`
	Diet               string   `json:"diet"`
	Habitat            string   `json:"habitat"`
	LifespanYears      *float64 `json:"lifespan_years"`
	AverageWeightKg    *float64 `json:"average_weight_kg"`
	Notes              string   `json:"notes"`
	ImageURL           string   `json:"image_url"`
	IsDeleted          bool     `json:"is_deleted"`
}

// IndividualRow is the remote shape of domain.Individual. History entries are
// stored as JSON documents and keep their domain shape.
type IndividualRow struct {
	ID            string                `json:"id"`
	ProjectID     string                `json:"project_id"`
	SpeciesID     string                `json:"species_id"`
	Name          string                `json:"name"`
	StudbookID    string                `json:"studbook_id"`
	Sex           string                `json:"sex"`
	BirthDate     string                `json:"birth_date"`
	SireID        *string               `json:"sire_id"`
	DamID         *string               `json:"dam_id"`
	Status        string                `json:"status"`
	Location      string                `json:"location"`
	Notes         string                `json:"notes"`
	WeightHistory []domain.WeightRecord `json:"weight_history"`
	GrowthHistory []domain.GrowthRecord `json:"growth_history"`
	HealthHistory []domain.HealthRecord `json:"health_history"`
	IsDeleted     bool                  `json:"is_deleted"`
}

// BreedingEventRow is the remote shape of domain.BreedingEvent.
type BreedingEventRow struct {
	ID           string   `json:"id"`
	SpeciesID    string   `json:"species_id"`
	SireID       string   `json:"sire_id"`
	DamID        string   `json:"dam_id"`
	PairingDate  string   `json:"pairing_date"`
	ExpectedDate string   `json:"expected_date"`
	Status       string   `json:"status"`
	OffspringIDs []string `json:"offspring_ids"`
	Notes        string   `json:"notes"`
	IsDeleted    bool     `json:"is_deleted"`
}

// ChangeRequestRow is the remote shape of domain.ChangeRequest.
type ChangeRequestRow struct {
	ID          string            `json:"id"`
	RequestedBy string            `json:"requested_by"`
	Fields      map[string]string `json:"fields"`
	Reason      string            `json:"reason"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// LoanRow is the remote shape of domain.BreedingLoan.
type LoanRow struct {
	ID            string            `json:"id"`
	PartnerOrgID  string            `json:"partner_org_id"`
	IndividualIDs []string          `json:"individual_ids"`
	Direction     string            `json:"direction"`
	Status        string            `json:"status"`
	StartDate     string            `json:"start_date"`
	EndDate       string            `json:"end_date"`
	Terms         string            `json:"terms"`
	ChangeRequest *ChangeRequestRow `json:"change_request"`
	IsDeleted     bool              `json:"is_deleted"`
}

// PartnershipRow is the remote shape of domain.Partnership.
type PartnershipRow struct {
	ID        string    `json:"id"`
	OrgIDA    string    `json:"org_id_a"`
	OrgIDB    string    `json:"org_id_b"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	IsDeleted bool      `json:"is_deleted"`
}

// LanguageRow is the remote shape of domain.LanguageConfig.
type LanguageRow struct {
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Translations map[string]string `json:"translations"`
	IsDefault    bool              `json:"is_default"`
	IsDeleted    bool              `json:"is_deleted"`
}

// SettingsRow is the remote shape of domain.SystemSettings.
type SettingsRow struct {
	ID               string `json:"id"`
	DefaultLanguage  string `json:"default_language"`
	WeightUnit       string `json:"weight_unit"`
	DateFormat       string `json:"date_format"`
	EnrichmentActive bool   `json:"enrichment_active"`
	MaintenanceMode  bool   `json:"maintenance_mode"`
}
