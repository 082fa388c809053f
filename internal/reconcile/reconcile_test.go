package reconcile

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arksync/internal/transport"
	"arksync/pkg/domain"
)

func TestActiveDropsSoftDeleted(t *testing.T) {
	in := []domain.Species{{ID: "a"}, {ID: "b", Deleted: true}, {ID: "c"}}
	got := Active(in)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.NotNil(t, Active[domain.Project](nil))
}

func TestSplitOrganizationsPartnerFiltering(t *testing.T) {
	all := []domain.Organization{{ID: "org-1"}, {ID: "org-2"}, {ID: "org-3"}}

	mine, partners := SplitOrganizations(all, "org-2")

	require.NotNil(t, mine)
	assert.Equal(t, "org-2", mine.ID)
	require.Len(t, partners, 2)
	assert.Equal(t, "org-1", partners[0].ID)
	assert.Equal(t, "org-3", partners[1].ID)
}

func TestSplitOrganizationsUnknownMine(t *testing.T) {
	all := []domain.Organization{{ID: "org-1"}}

	mine, partners := SplitOrganizations(all, "")
	assert.Nil(t, mine)
	assert.Len(t, partners, 1)

	mine, partners = SplitOrganizations(all, "org-9")
	assert.Nil(t, mine)
	assert.Len(t, partners, 1)
}

func TestClassify(t *testing.T) {
	cases := []struct {
		msg  string
		want Failure
	}{
		{"permission denied for table species", FailureSchemaNotProvisioned},
		{`ERROR: relation "arksync_records" does not exist (SQLSTATE 42P01)`, FailureSchemaNotProvisioned},
		{"SQLSTATE 42501", FailureSchemaNotProvisioned},
		{"Could not find the table in the schema cache", FailureSchemaNotProvisioned},
		{"dial tcp 10.0.0.1:443: connect: connection refused", FailureNetwork},
		{"context deadline exceeded (Client.Timeout exceeded while awaiting headers)", FailureNetwork},
		{"lookup api.example.org: no such host", FailureNetwork},
		{"internal server error", FailureServer},
		{"", FailureServer},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.msg))
		})
	}
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, FailureNone, ClassifyError(nil))
	assert.Equal(t, FailureNetwork, ClassifyError(&transport.Error{Kind: transport.KindNetwork, Message: "EOF"}))
	assert.Equal(t, FailureSchemaNotProvisioned,
		ClassifyError(&transport.Error{Kind: transport.KindServer, Status: 500, Message: "permission denied for relation x"}))
	assert.Equal(t, FailureServer, ClassifyError(fmt.Errorf("pull: %w", errors.New("boom"))))
}

type call struct {
	collection domain.Collection
	skip       bool
	n          int
}

type recordingSink struct {
	calls []call
	fail  domain.Collection
}

func (s *recordingSink) record(c domain.Collection, n int, skip bool) error {
	if c == s.fail {
		return errors.New("disk full")
	}
	s.calls = append(s.calls, call{c, skip, n})
	return nil
}

func (s *recordingSink) SaveOrganization(_ domain.Organization, skip bool) error {
	return s.record(domain.CollectionOrganization, 1, skip)
}
func (s *recordingSink) SavePartnerOrganizations(v []domain.Organization, skip bool) error {
	return s.record(domain.CollectionPartnerOrganizations, len(v), skip)
}
func (s *recordingSink) SaveUsers(v []domain.User, skip bool) error {
	return s.record(domain.CollectionUsers, len(v), skip)
}
func (s *recordingSink) SaveProjects(v []domain.Project, skip bool) error {
	return s.record(domain.CollectionProjects, len(v), skip)
}
func (s *recordingSink) SaveSpecies(v []domain.Species, skip bool) error {
	return s.record(domain.CollectionSpecies, len(v), skip)
}
func (s *recordingSink) SaveIndividuals(v []domain.Individual, skip bool) error {
	return s.record(domain.CollectionIndividuals, len(v), skip)
}
func (s *recordingSink) SaveBreedingEvents(v []domain.BreedingEvent, skip bool) error {
	return s.record(domain.CollectionBreedingEvents, len(v), skip)
}
func (s *recordingSink) SaveLoans(v []domain.BreedingLoan, skip bool) error {
	return s.record(domain.CollectionLoans, len(v), skip)
}
func (s *recordingSink) SavePartnerships(v []domain.Partnership, skip bool) error {
	return s.record(domain.CollectionPartnerships, len(v), skip)
}
func (s *recordingSink) SaveLanguages(v []domain.LanguageConfig, skip bool) error {
	return s.record(domain.CollectionLanguages, len(v), skip)
}
func (s *recordingSink) SaveSettings(_ domain.SystemSettings, skip bool) error {
	return s.record(domain.CollectionSettings, 1, skip)
}

func TestApplyWritesOnlyPresentCollectionsWithSkipSync(t *testing.T) {
	sink := &recordingSink{}
	snap := Snapshot{
		Species:     []domain.Species{{ID: "s1"}, {ID: "s2"}},
		Individuals: []domain.Individual{},
		Settings:    &domain.SystemSettings{WeightUnit: "kg"},
	}

	applied, err := Apply(snap, sink)

	require.NoError(t, err)
	assert.Equal(t, []domain.Collection{domain.CollectionSpecies, domain.CollectionIndividuals, domain.CollectionSettings}, applied)
	require.Len(t, sink.calls, 3)
	for _, c := range sink.calls {
		assert.True(t, c.skip, "collection %s pushed back", c.collection)
	}
	assert.Equal(t, 2, sink.calls[0].n)
	assert.Equal(t, 0, sink.calls[1].n)
}

func TestApplyContinuesPastFailingCollection(t *testing.T) {
	sink := &recordingSink{fail: domain.CollectionUsers}
	snap := Snapshot{
		Users:    []domain.User{{ID: "u1"}},
		Projects: []domain.Project{{ID: "p1"}},
	}

	applied, err := Apply(snap, sink)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "apply users")
	assert.Equal(t, []domain.Collection{domain.CollectionProjects}, applied)
}
