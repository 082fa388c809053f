package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectionRemoteNames(t *testing.T) {
	assert.Equal(t, "organizations", CollectionOrganization.Remote())
	assert.Equal(t, "organizations", CollectionPartnerOrganizations.Remote())
	assert.Equal(t, "breeding_loans", CollectionLoans.Remote())
	assert.Equal(t, "species", CollectionSpecies.Remote())

	assert.Equal(t, "code", CollectionLanguages.KeyField())
	assert.Equal(t, "id", CollectionIndividuals.KeyField())
}

func TestUserCanAccess(t *testing.T) {
	open := User{ID: "u1"}
	assert.True(t, open.CanAccess("any"))

	limited := User{ID: "u2", AllowedProjectIDs: []string{"p-1"}}
	assert.True(t, limited.CanAccess("p-1"))
	assert.False(t, limited.CanAccess("p-2"))
}

func TestIndividualHasParents(t *testing.T) {
	empty := ""
	sire := "ind-1"
	assert.False(t, Individual{}.HasParents())
	assert.False(t, Individual{SireID: &empty}.HasParents())
	assert.True(t, Individual{SireID: &sire}.HasParents())
	assert.True(t, Individual{DamID: &sire}.HasParents())
}

func TestLoanPendingChange(t *testing.T) {
	assert.False(t, BreedingLoan{}.HasPendingChange())
	assert.True(t, BreedingLoan{ChangeRequest: &ChangeRequest{Status: ChangeRequestPending}}.HasPendingChange())
	assert.False(t, BreedingLoan{ChangeRequest: &ChangeRequest{Status: ChangeRequestAccepted}}.HasPendingChange())
}

func TestPartnershipSides(t *testing.T) {
	p := Partnership{OrgIDA: "org-1", OrgIDB: "org-2"}
	assert.True(t, p.Involves("org-2"))
	assert.False(t, p.Involves("org-3"))
	assert.Equal(t, "org-2", p.Other("org-1"))
	assert.Equal(t, "org-1", p.Other("org-2"))
}

func TestSessionValid(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	assert.False(t, Session{}.Valid(now))
	assert.True(t, Session{Token: "t"}.Valid(now))
	assert.True(t, Session{Token: "t", ExpiresAt: now.Add(time.Minute)}.Valid(now))
	assert.False(t, Session{Token: "t", ExpiresAt: now}.Valid(now))
}

func TestDeletable(t *testing.T) {
	items := []Deletable{
		Organization{Deleted: true}, Project{Deleted: true}, User{Deleted: true},
		Species{Deleted: true}, Individual{Deleted: true}, BreedingEvent{Deleted: true},
		BreedingLoan{Deleted: true}, Partnership{Deleted: true}, LanguageConfig{Deleted: true},
	}
	for _, it := range items {
		assert.True(t, it.IsDeleted(), "%T", it)
	}
}

func TestCamelCaseJSON(t *testing.T) {
	raw, err := json.Marshal(Organization{ID: "org-1", Name: "Zoo", FoundedYear: 1900, AllowPartnerRequests: true})
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	assert.EqualValues(t, 1900, m["foundedYear"])
	assert.Equal(t, true, m["allowPartnerRequests"])
	assert.NotContains(t, m, "deleted")
}
