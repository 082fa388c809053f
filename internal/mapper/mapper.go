package mapper

import (
	"arksync/pkg/domain"
)

// Map applies fn to every element of in. The result is never nil.
func Map[S, D any](in []S, fn func(S) D) []D {
	out := make([]D, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}

func ids(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func dict(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}
	return in
}

func slice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

// nullable maps a blank id to SQL null.
func nullable(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	v := *id
	return &v
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// OrganizationToRemote maps an organization for upsert.
func OrganizationToRemote(o domain.Organization) OrganizationRow {
	return OrganizationRow{
		ID:                   o.ID,
		Name:                 o.Name,
		Country:              o.Country,
		City:                 o.City,
		FoundedYear:          o.FoundedYear,
		Website:              o.Website,
		ContactEmail:         o.ContactEmail,
		LogoURL:              o.LogoURL,
		IsPublic:             o.IsPublic,
		AllowPartnerRequests: o.AllowPartnerRequests,
		IsDeleted:            o.Deleted,
	}
}

// OrganizationFromRemote maps a pulled organization row.
func OrganizationFromRemote(r OrganizationRow) domain.Organization {
	return domain.Organization{
		ID:                   r.ID,
		Name:                 r.Name,
		Country:              r.Country,
		City:                 r.City,
		FoundedYear:          r.FoundedYear,
		Website:              r.Website,
		ContactEmail:         r.ContactEmail,
		LogoURL:              r.LogoURL,
		IsPublic:             r.IsPublic,
		AllowPartnerRequests: r.AllowPartnerRequests,
		Deleted:              r.IsDeleted,
	}
}

func ProjectToRemote(p domain.Project) ProjectRow {
	return ProjectRow{
		ID:          p.ID,
		OrgID:       p.OrgID,
		Name:        p.Name,
		Description: p.Description,
		Location:    p.Location,
		StartDate:   p.StartDate,
		Status:      p.Status,
		IsDeleted:   p.Deleted,
	}
}

func ProjectFromRemote(r ProjectRow) domain.Project {
	return domain.Project{
		ID:          r.ID,
		OrgID:       r.OrgID,
		Name:        r.Name,
		Description: r.Description,
		Location:    r.Location,
		StartDate:   r.StartDate,
		Status:      r.Status,
		Deleted:     r.IsDeleted,
	}
}

// UserToRemote maps a user for upsert. The password hash passes through
// untouched.
func UserToRemote(u domain.User) UserRow {
	return UserRow{
		ID:                u.ID,
		OrgID:             nullString(u.OrgID),
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		PasswordHash:      u.PasswordHash,
		AllowedProjectIDs: ids(u.AllowedProjectIDs),
		IsDeleted:         u.Deleted,
	}
}

func UserFromRemote(r UserRow) domain.User {
	return domain.User{
		ID:                r.ID,
		OrgID:             deref(r.OrgID),
		Name:              r.Name,
		Email:             r.Email,
		Role:              r.Role,
		PasswordHash:      r.PasswordHash,
		AllowedProjectIDs: ids(r.AllowedProjectIDs),
		Deleted:           r.IsDeleted,
	}
}

func SpeciesToRemote(s domain.Species) SpeciesRow {
	return SpeciesRow{
		ID:                 s.ID,
		ProjectID:          s.ProjectID,
		CommonName:         s.CommonName,
		ScientificName:     s.ScientificName,
		ConservationStatus: s.ConservationStatus,
		Family:             s.Family,
		Diet:               s.Diet,
		Habitat:            s.Habitat,
		LifespanYears:      s.LifespanYears,
		AverageWeightKg:    s.AverageWeightKg,
		Notes:              s.Notes,
		ImageURL:           s.ImageURL,
		IsDeleted:          s.Deleted,
	}
}

func SpeciesFromRemote(r SpeciesRow) domain.Species {
	return domain.Species{
		ID:                 r.ID,
		ProjectID:          r.ProjectID,
		CommonName:         r.CommonName,
		ScientificName:     r.ScientificName,
		ConservationStatus: r.ConservationStatus,
		Family:             r.Family,
		Diet:               r.Diet,
		Habitat:            r.Habitat,
		LifespanYears:      r.LifespanYears,
		AverageWeightKg:    r.AverageWeightKg,
		Notes:              r.Notes,
		ImageURL:           r.ImageURL,
		Deleted:            r.IsDeleted,
	}
}

// IndividualToRemote maps an individual including its parent references.
func IndividualToRemote(i domain.Individual) IndividualRow {
	return IndividualRow{
		ID:            i.ID,
		ProjectID:     i.ProjectID,
		SpeciesID:     i.SpeciesID,
		Name:          i.Name,
		StudbookID:    i.StudbookID,
		Sex:           i.Sex,
		BirthDate:     i.BirthDate,
		SireID:        nullable(i.SireID),
		DamID:         nullable(i.DamID),
		Status:        i.Status,
		Location:      i.Location,
		Notes:         i.Notes,
		WeightHistory: slice(i.WeightHistory),
		GrowthHistory: slice(i.GrowthHistory),
		HealthHistory: slice(i.HealthHistory),
		IsDeleted:     i.Deleted,
	}
}

// IndividualToRemoteWithoutParents maps an individual with sire and dam
// forced to null, so the row can be written before its parents exist.
func IndividualToRemoteWithoutParents(i domain.Individual) IndividualRow {
	row := IndividualToRemote(i)
	row.SireID = nil
	row.DamID = nil
	return row
}

func IndividualFromRemote(r IndividualRow) domain.Individual {
	return domain.Individual{
		ID:            r.ID,
		ProjectID:     r.ProjectID,
		SpeciesID:     r.SpeciesID,
		Name:          r.Name,
		StudbookID:    r.StudbookID,
		Sex:           r.Sex,
		BirthDate:     r.BirthDate,
		SireID:        nullable(r.SireID),
		DamID:         nullable(r.DamID),
		Status:        r.Status,
		Location:      r.Location,
		Notes:         r.Notes,
		WeightHistory: slice(r.WeightHistory),
		GrowthHistory: slice(r.GrowthHistory),
		HealthHistory: slice(r.HealthHistory),
		Deleted:       r.IsDeleted,
	}
}

func BreedingEventToRemote(b domain.BreedingEvent) BreedingEventRow {
	return BreedingEventRow{
		ID:           b.ID,
		SpeciesID:    b.SpeciesID,
		SireID:       b.SireID,
		DamID:        b.DamID,
		PairingDate:  b.PairingDate,
		ExpectedDate: b.ExpectedDate,
		Status:       b.Status,
		OffspringIDs: ids(b.OffspringIDs),
		Notes:        b.Notes,
		IsDeleted:    b.Deleted,
	}
}

func BreedingEventFromRemote(r BreedingEventRow) domain.BreedingEvent {
	return domain.BreedingEvent{
		ID:           r.ID,
		SpeciesID:    r.SpeciesID,
		SireID:       r.SireID,
		DamID:        r.DamID,
		PairingDate:  r.PairingDate,
		ExpectedDate: r.ExpectedDate,
		Status:       r.Status,
		OffspringIDs: ids(r.OffspringIDs),
		Notes:        r.Notes,
		Deleted:      r.IsDeleted,
	}
}

func changeRequestToRemote(c *domain.ChangeRequest) *ChangeRequestRow {
	if c == nil {
		return nil
	}
	return &ChangeRequestRow{
		ID:          c.ID,
		RequestedBy: c.RequestedBy,
		Fields:      dict(c.Fields),
		Reason:      c.Reason,
		Status:      c.Status,
		CreatedAt:   c.CreatedAt,
	}
}

func changeRequestFromRemote(r *ChangeRequestRow) *domain.ChangeRequest {
	if r == nil {
		return nil
	}
	status := r.Status
	if status == "" {
		status = domain.ChangeRequestPending
	}
	return &domain.ChangeRequest{
		ID:          r.ID,
		RequestedBy: r.RequestedBy,
		Fields:      dict(r.Fields),
		Reason:      r.Reason,
		Status:      status,
		CreatedAt:   r.CreatedAt,
	}
}

func LoanToRemote(l domain.BreedingLoan) LoanRow {
	return LoanRow{
		ID:            l.ID,
		PartnerOrgID:  l.PartnerOrgID,
		IndividualIDs: ids(l.IndividualIDs),
		Direction:     l.Direction,
		Status:        l.Status,
		StartDate:     l.StartDate,
		EndDate:       l.EndDate,
		Terms:         l.Terms,
		ChangeRequest: changeRequestToRemote(l.ChangeRequest),
		IsDeleted:     l.Deleted,
	}
}

func LoanFromRemote(r LoanRow) domain.BreedingLoan {
	return domain.BreedingLoan{
		ID:            r.ID,
		PartnerOrgID:  r.PartnerOrgID,
		IndividualIDs: ids(r.IndividualIDs),
		Direction:     r.Direction,
		Status:        r.Status,
		StartDate:     r.StartDate,
		EndDate:       r.EndDate,
		Terms:         r.Terms,
		ChangeRequest: changeRequestFromRemote(r.ChangeRequest),
		Deleted:       r.IsDeleted,
	}
}

func PartnershipToRemote(p domain.Partnership) PartnershipRow {
	return PartnershipRow{
		ID:        p.ID,
		OrgIDA:    p.OrgIDA,
		OrgIDB:    p.OrgIDB,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		IsDeleted: p.Deleted,
	}
}

func PartnershipFromRemote(r PartnershipRow) domain.Partnership {
	return domain.Partnership{
		ID:        r.ID,
		OrgIDA:    r.OrgIDA,
		OrgIDB:    r.OrgIDB,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		Deleted:   r.IsDeleted,
	}
}

func LanguageToRemote(l domain.LanguageConfig) LanguageRow {
	return LanguageRow{
		Code:         l.Code,
		Name:         l.Name,
		Translations: dict(l.Translations),
		IsDefault:    l.IsDefault,
		IsDeleted:    l.Deleted,
	}
}

func LanguageFromRemote(r LanguageRow) domain.LanguageConfig {
	return domain.LanguageConfig{
		Code:         r.Code,
		Name:         r.Name,
		Translations: dict(r.Translations),
		IsDefault:    r.IsDefault,
		Deleted:      r.IsDeleted,
	}
}

// SettingsToRemote maps the settings singleton under its fixed id.
func SettingsToRemote(s domain.SystemSettings) SettingsRow {
	return SettingsRow{
		ID:               domain.SettingsID,
		DefaultLanguage:  s.DefaultLanguage,
		WeightUnit:       s.WeightUnit,
		DateFormat:       s.DateFormat,
		EnrichmentActive: s.EnrichmentActive,
		MaintenanceMode:  s.MaintenanceMode,
	}
}

// SettingsFromRemote maps a pulled settings row. Blank text fields fall back
// to the defaults.
func SettingsFromRemote(r SettingsRow) domain.SystemSettings {
	def := domain.DefaultSettings()
	out := domain.SystemSettings{
		DefaultLanguage:  r.DefaultLanguage,
		WeightUnit:       r.WeightUnit,
		DateFormat:       r.DateFormat,
		EnrichmentActive: r.EnrichmentActive,
		MaintenanceMode:  r.MaintenanceMode,
	}
	if out.DefaultLanguage == "" {
		out.DefaultLanguage = def.DefaultLanguage
	}
	if out.WeightUnit == "" {
		out.WeightUnit = def.WeightUnit
	}
	if out.DateFormat == "" {
		out.DateFormat = def.DateFormat
	}
	return out
}
