// Package domain defines the records synchronized between the local cache and
// the remote record service, plus the collection identifiers used as storage
// keys and remote endpoint names.
package domain

import "time"

// Collection identifies a synchronized collection. The value doubles as the
// local storage key and the remote collection name.
type Collection string

// Synchronized collections.
const (
	// CollectionOrganization holds the single organization owned by this client.
	CollectionOrganization Collection = "organization"
	// CollectionPartnerOrganizations holds organizations visible through partnerships.
	// Remotely both live in the organizations collection.
	CollectionPartnerOrganizations Collection = "partner_organizations"
	CollectionUsers                Collection = "users"
	CollectionProjects             Collection = "projects"
	CollectionSpecies              Collection = "species"
	CollectionIndividuals          Collection = "individuals"
	CollectionBreedingEvents       Collection = "breeding_events"
	CollectionLoans                Collection = "breeding_loans"
	CollectionPartnerships         Collection = "partnerships"
	CollectionLanguages            Collection = "languages"
	CollectionSettings             Collection = "settings"
)

// Local-only keys. These never leave the device and survive every pull.
const (
	KeySession        = "session"
	KeyCurrentProject = "current_project"
	KeySyncStatus     = "sync_status"
)

// RemoteOrganizations is the remote collection backing both Organization and
// partner organizations.
const RemoteOrganizations = "organizations"

// SettingsID is the synthetic id under which the settings singleton is synced.
const SettingsID = "system_settings"

// Remote returns the remote collection name for c.
func (c Collection) Remote() string {
	switch c {
	case CollectionOrganization, CollectionPartnerOrganizations:
		return RemoteOrganizations
	default:
		return string(c)
	}
}

// KeyField returns the remote column used as the upsert key.
func (c Collection) KeyField() string {
	if c == CollectionLanguages {
		return "code"
	}
	return "id"
}

// Organization is a zoo, aquarium or botanical collection.
type Organization struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Country              string `json:"country,omitempty"`
	City                 string `json:"city,omitempty"`
	FoundedYear          int    `json:"foundedYear,omitempty"`
	Website              string `json:"website,omitempty"`
	ContactEmail         string `json:"contactEmail,omitempty"`
	LogoURL              string `json:"logoUrl,omitempty"`
	IsPublic             bool   `json:"isPublic"`
	AllowPartnerRequests bool   `json:"allowPartnerRequests"`
	Deleted              bool   `json:"deleted,omitempty"`
}

// Project scopes species and individuals within an organization.
type Project struct {
	ID          string `json:"id"`
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	StartDate   string `json:"startDate,omitempty"`
	Status      string `json:"status,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

// User is a global account. PasswordHash is opaque to the sync layer.
type User struct {
	ID                string   `json:"id"`
	OrgID             string   `json:"orgId,omitempty"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	Role              string   `json:"role,omitempty"`
	PasswordHash      string   `json:"passwordHash,omitempty"`
	AllowedProjectIDs []string `json:"allowedProjectIds"`
	Deleted           bool     `json:"deleted,omitempty"`
}

// CanAccess reports whether the user may open the given project. An empty
// restriction list grants access to every project.
func (u User) CanAccess(projectID string) bool {
	if len(u.AllowedProjectIDs) == 0 {
		return true
	}
	for _, id := range u.AllowedProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

// Species carries biological metadata, optionally filled by enrichment.
type Species struct {
	ID                 string   `json:"id"`
	ProjectID          string   `json:"projectId"`
	CommonName         string   `json:"commonName"`
	ScientificName     string   `json:"scientificName,omitempty"`
	ConservationStatus string   `json:"conservationStatus,omitempty"`
	Family             string   `json:"family,omitempty"`
	Diet               string   `json:"diet,omitempty"`
	Habitat            string   `json:"habitat,omitempty"`
	LifespanYears      *float64 `json:"lifespanYears,omitempty"`
	AverageWeightKg    *float64 `json:"averageWeightKg,omitempty"`
	Notes              string   `json:"notes,omitempty"`
	ImageURL           string   `json:"imageUrl,omitempty"`
	Deleted            bool     `json:"deleted,omitempty"`
}

// WeightRecord is one entry of an individual's weight history.
type WeightRecord struct {
	Date     string  `json:"date"`
	WeightKg float64 `json:"weightKg"`
	Notes    string  `json:"notes,omitempty"`
}

// GrowthRecord is one entry of an individual's growth history.
type GrowthRecord struct {
	Date     string  `json:"date"`
	LengthCm float64 `json:"lengthCm,omitempty"`
	HeightCm float64 `json:"heightCm,omitempty"`
	Notes    string  `json:"notes,omitempty"`
}

// HealthRecord is one entry of an individual's health history.
type HealthRecord struct {
	Date        string `json:"date"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Vet         string `json:"vet,omitempty"`
}

// Individual is one animal or plant. SireID and DamID point into the same
// collection and may reference records that do not exist locally.
type Individual struct {
	ID            string         `json:"id"`
	ProjectID     string         `json:"projectId"`
	SpeciesID     string         `json:"speciesId"`
	Name          string         `json:"name"`
	StudbookID    string         `json:"studbookId,omitempty"`
	Sex           string         `json:"sex,omitempty"`
	BirthDate     string         `json:"birthDate,omitempty"`
	SireID        *string        `json:"sireId,omitempty"`
	DamID         *string        `json:"damId,omitempty"`
	Status        string         `json:"status,omitempty"`
	Location      string         `json:"location,omitempty"`
	Notes         string         `json:"notes,omitempty"`
	WeightHistory []WeightRecord `json:"weightHistory"`
	GrowthHistory []GrowthRecord `json:"growthHistory"`
	HealthHistory []HealthRecord `json:"healthHistory"`
	Deleted       bool           `json:"deleted,omitempty"`
}

// HasParents reports whether a sire or dam reference is set.
func (i Individual) HasParents() bool {
	return (i.SireID != nil && *i.SireID != "") || (i.DamID != nil && *i.DamID != "")
}

// BreedingEvent records a pairing and the offspring it produced.
type BreedingEvent struct {
	ID           string   `json:"id"`
	SpeciesID    string   `json:"speciesId"`
	SireID       string   `json:"sireId"`
	DamID        string   `json:"damId"`
	PairingDate  string   `json:"pairingDate,omitempty"`
	ExpectedDate string   `json:"expectedDate,omitempty"`
	Status       string   `json:"status,omitempty"`
	OffspringIDs []string `json:"offspringIds"`
	Notes        string   `json:"notes,omitempty"`
	Deleted      bool     `json:"deleted,omitempty"`
}

// ChangeRequest is a pending bilateral amendment of a loan.
type ChangeRequest struct {
	ID          string            `json:"id"`
	RequestedBy string            `json:"requestedBy"`
	Fields      map[string]string `json:"fields"`
	Reason      string            `json:"reason,omitempty"`
	Status      string            `json:"status"`
	CreatedAt   time.Time         `json:"createdAt"`
}

// Change request statuses.
const (
	ChangeRequestPending  = "pending"
	ChangeRequestAccepted = "accepted"
	ChangeRequestRejected = "rejected"
)

// BreedingLoan moves individuals to or from a partner organization.
type BreedingLoan struct {
	ID            string         `json:"id"`
	PartnerOrgID  string         `json:"partnerOrgId"`
	IndividualIDs []string       `json:"individualIds"`
	Direction     string         `json:"direction,omitempty"`
	Status        string         `json:"status,omitempty"`
	StartDate     string         `json:"startDate,omitempty"`
	EndDate       string         `json:"endDate,omitempty"`
	Terms         string         `json:"terms,omitempty"`
	ChangeRequest *ChangeRequest `json:"changeRequest,omitempty"`
	Deleted       bool           `json:"deleted,omitempty"`
}

// HasPendingChange reports whether a change request awaits an answer.
func (l BreedingLoan) HasPendingChange() bool {
	return l.ChangeRequest != nil && l.ChangeRequest.Status == ChangeRequestPending
}

// Partnership is a symmetric relation between two organizations.
type Partnership struct {
	ID        string    `json:"id"`
	OrgIDA    string    `json:"orgIdA"`
	OrgIDB    string    `json:"orgIdB"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Deleted   bool      `json:"deleted,omitempty"`
}

// Involves reports whether orgID is either side of the partnership.
func (p Partnership) Involves(orgID string) bool {
	return p.OrgIDA == orgID || p.OrgIDB == orgID
}

// Other returns the opposite side of the partnership from orgID.
func (p Partnership) Other(orgID string) string {
	if p.OrgIDA == orgID {
		return p.OrgIDB
	}
	return p.OrgIDA
}

// LanguageConfig is a UI language keyed by Code.
type LanguageConfig struct {
	Code         string            `json:"code"`
	Name         string            `json:"name"`
	Translations map[string]string `json:"translations"`
	IsDefault    bool              `json:"isDefault,omitempty"`
	Deleted      bool              `json:"deleted,omitempty"`
}

// SystemSettings is the singleton configuration object.
type SystemSettings struct {
	DefaultLanguage  string `json:"defaultLanguage"`
	WeightUnit       string `json:"weightUnit"`
	DateFormat       string `json:"dateFormat"`
	EnrichmentActive bool   `json:"enrichmentActive"`
	MaintenanceMode  bool   `json:"maintenanceMode"`
}

// DefaultSettings returns the settings used before any are saved or pulled.
func DefaultSettings() SystemSettings {
	return SystemSettings{DefaultLanguage: "en", WeightUnit: "kg", DateFormat: "2006-01-02", EnrichmentActive: true}
}

// Session is the local credential state. It is never synchronized.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Valid reports whether the session holds an unexpired token.
func (s Session) Valid(now time.Time) bool {
	return s.Token != "" && (s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt))
}
