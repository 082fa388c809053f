package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arksync/internal/localstore"
	"arksync/internal/reconcile"
	"arksync/internal/records"
	"arksync/internal/transport"
	"arksync/pkg/domain"
)

type write struct {
	path string
	body json.RawMessage
}

type fakeRemote struct {
	mu     sync.Mutex
	writes []write
	read   transport.ReadResult
	reads  int
	fail   func(path string, n int) error
}

func (f *fakeRemote) Read(context.Context, string) transport.ReadResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.read
}

func (f *fakeRemote) Write(_ context.Context, path string, body any) (json.RawMessage, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{path: path, body: raw})
	if f.fail != nil {
		if err := f.fail(path, len(f.writes)); err != nil {
			return nil, err
		}
	}
	return json.RawMessage(`{}`), nil
}

func (f *fakeRemote) snapshot() []write {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]write(nil), f.writes...)
}

type individualRow struct {
	ID     string  `json:"id"`
	SireID *string `json:"sire_id"`
	DamID  *string `json:"dam_id"`
}

func decodeIndividuals(t *testing.T, raw json.RawMessage) []individualRow {
	t.Helper()
	var out []individualRow
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func ptr(s string) *string { return &s }

func newLocal(t *testing.T) *records.Records {
	t.Helper()
	return records.New(localstore.New(localstore.NewMemoryBackend(), nil))
}

func TestPushIndividualsTwoPhaseOrdering(t *testing.T) {
	remote := &fakeRemote{}
	o := New(remote, nil)
	a := domain.Individual{ID: "A", Name: "no parents"}
	b := domain.Individual{ID: "B", Name: "child", SireID: ptr("A")}

	require.NoError(t, o.PushIndividuals(context.Background(), []domain.Individual{a, b}))

	writes := remote.snapshot()
	require.Len(t, writes, 2)
	for _, w := range writes {
		assert.Equal(t, "/api/collections/individuals/upsert", w.path)
	}

	pass1 := decodeIndividuals(t, writes[0].body)
	require.Len(t, pass1, 2)
	for _, row := range pass1 {
		assert.Nil(t, row.SireID, row.ID)
		assert.Nil(t, row.DamID, row.ID)
	}

	pass2 := decodeIndividuals(t, writes[1].body)
	require.Len(t, pass2, 1)
	assert.Equal(t, "B", pass2[0].ID)
	require.NotNil(t, pass2[0].SireID)
	assert.Equal(t, "A", *pass2[0].SireID)
}

func TestPushIndividualsSkipsSecondPassWithoutParents(t *testing.T) {
	remote := &fakeRemote{}
	o := New(remote, nil)

	require.NoError(t, o.PushIndividuals(context.Background(), []domain.Individual{{ID: "A"}, {ID: "C", DamID: ptr("")}}))
	assert.Len(t, remote.snapshot(), 1)
}

func TestPushIndividualsStopsWhenFirstPassFails(t *testing.T) {
	remote := &fakeRemote{fail: func(string, int) error {
		return &transport.Error{Kind: transport.KindNetwork, Message: "connection refused"}
	}}
	o := New(remote, nil)

	err := o.PushIndividuals(context.Background(), []domain.Individual{{ID: "A"}, {ID: "B", SireID: ptr("A")}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "pass 1")
	assert.ErrorIs(t, err, transport.ErrNetwork)
	assert.Len(t, remote.snapshot(), 1)
}

func TestEmptyPushSendsNothing(t *testing.T) {
	remote := &fakeRemote{}
	o := New(remote, nil)
	ctx := context.Background()

	require.NoError(t, o.PushSpecies(ctx, nil))
	require.NoError(t, o.PushIndividuals(ctx, []domain.Individual{}))
	require.NoError(t, o.PushLanguages(ctx, nil))
	assert.Empty(t, remote.snapshot())
}

func TestPushRoutesAndKeys(t *testing.T) {
	remote := &fakeRemote{}
	o := New(remote, nil)
	ctx := context.Background()

	require.NoError(t, o.PushOrganizations(ctx, []domain.Organization{{ID: "org-1", FoundedYear: 1950}}))
	require.NoError(t, o.PushSettings(ctx, domain.DefaultSettings()))
	require.NoError(t, o.PushLanguages(ctx, []domain.LanguageConfig{{Code: "fr", Name: "Français"}}))

	writes := remote.snapshot()
	require.Len(t, writes, 3)
	assert.Equal(t, "/api/collections/organizations/upsert", writes[0].path)
	assert.Contains(t, string(writes[0].body), `"founded_year":1950`)
	assert.Equal(t, "/api/collections/settings/upsert", writes[1].path)
	assert.Contains(t, string(writes[1].body), `"id":"system_settings"`)
	assert.Equal(t, "/api/collections/languages/upsert", writes[2].path)
	assert.Contains(t, string(writes[2].body), `"code":"fr"`)
}

func TestSoftDeleteKeysByCodeForLanguages(t *testing.T) {
	remote := &fakeRemote{}
	o := New(remote, nil)
	ctx := context.Background()

	require.NoError(t, o.SoftDelete(ctx, domain.CollectionLanguages, "fr"))
	require.NoError(t, o.SoftDelete(ctx, domain.CollectionSpecies, "sp-1"))

	writes := remote.snapshot()
	require.Len(t, writes, 2)
	assert.Equal(t, "/api/collections/languages/delete", writes[0].path)
	assert.JSONEq(t, `{"code":"fr"}`, string(writes[0].body))
	assert.Equal(t, "/api/collections/species/delete", writes[1].path)
	assert.JSONEq(t, `{"id":"sp-1"}`, string(writes[1].body))
}

func TestPushAllSendsEveryNonEmptyCollection(t *testing.T) {
	remote := &fakeRemote{}
	o := New(remote, nil)
	d := records.Dump{
		Organization:         &domain.Organization{ID: "org-1"},
		PartnerOrganizations: []domain.Organization{{ID: "org-2"}},
		Species:              []domain.Species{{ID: "s", Deleted: true}},
		Individuals:          []domain.Individual{{ID: "A"}, {ID: "B", SireID: ptr("A")}},
		Settings:             domain.DefaultSettings(),
	}

	require.NoError(t, o.PushAll(context.Background(), d))

	paths := map[string]int{}
	for _, w := range remote.snapshot() {
		paths[w.path]++
		if strings.Contains(w.path, "species") {
			assert.Contains(t, string(w.body), `"is_deleted":true`)
		}
	}
	assert.Equal(t, map[string]int{
		"/api/collections/organizations/upsert": 1,
		"/api/collections/species/upsert":       1,
		"/api/collections/individuals/upsert":   2,
		"/api/collections/settings/upsert":      1,
	}, paths)
}

func TestPushAllReportsEveryFailure(t *testing.T) {
	remote := &fakeRemote{fail: func(path string, _ int) error {
		if strings.Contains(path, "users") || strings.Contains(path, "projects") {
			return errors.New("server error: boom")
		}
		return nil
	}}
	o := New(remote, nil)

	err := o.PushAll(context.Background(), records.Dump{
		Users:    []domain.User{{ID: "u"}},
		Projects: []domain.Project{{ID: "p"}},
		Settings: domain.DefaultSettings(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "push users")
	assert.Contains(t, err.Error(), "push projects")
}

const snapshotJSON = `{
	"organizations": [
		{"id":"org-1","name":"North"},
		{"id":"org-2","name":"Mine","founded_year":1980},
		{"id":"org-3","name":"South"},
		{"id":"org-4","name":"Gone","is_deleted":true}
	],
	"species": [
		{"id":"sp-1","common_name":"Okapi"},
		{"id":"sp-2","common_name":"Dodo","is_deleted":true}
	],
	"individuals": [
		{"id":"i-1","name":"Alpha","sire_id":null,"weight_history":null},
		{"id":"i-2","name":"Beta","sire_id":"i-1","dam_id":"external-7"}
	],
	"settings": [{"id":"system_settings","weight_unit":"lb"}]
}`

func TestFetchRemoteDataSplitsOrganizations(t *testing.T) {
	local := newLocal(t)
	require.NoError(t, local.SaveOrganization(domain.Organization{ID: "org-2"}, true))
	remote := &fakeRemote{read: transport.ReadResult{Success: true, Data: json.RawMessage(snapshotJSON)}}
	o := New(remote, local)

	res := o.FetchRemoteData(context.Background())

	require.True(t, res.Success)
	require.NotNil(t, res.Snapshot.Organization)
	assert.Equal(t, "org-2", res.Snapshot.Organization.ID)
	assert.Equal(t, 1980, res.Snapshot.Organization.FoundedYear)
	require.Len(t, res.Snapshot.PartnerOrganizations, 2)
	assert.Equal(t, "org-1", res.Snapshot.PartnerOrganizations[0].ID)
	assert.Equal(t, "org-3", res.Snapshot.PartnerOrganizations[1].ID)

	require.Len(t, res.Snapshot.Species, 1)
	assert.Equal(t, "Okapi", res.Snapshot.Species[0].CommonName)
	require.Len(t, res.Snapshot.Individuals, 2)
	assert.NotNil(t, res.Snapshot.Individuals[0].WeightHistory)
	assert.Equal(t, "external-7", *res.Snapshot.Individuals[1].DamID)
	require.NotNil(t, res.Snapshot.Settings)
	assert.Equal(t, "lb", res.Snapshot.Settings.WeightUnit)

	assert.Nil(t, res.Snapshot.Users)
	assert.Nil(t, res.Snapshot.Languages)
}

func TestFetchRemoteDataFallsBackToSessionOrganization(t *testing.T) {
	local := newLocal(t)
	require.NoError(t, local.SaveSession(domain.Session{Token: "t", User: domain.User{ID: "u", OrgID: "org-3"}}))
	remote := &fakeRemote{read: transport.ReadResult{Success: true, Data: json.RawMessage(snapshotJSON)}}

	res := New(remote, local).FetchRemoteData(context.Background())

	require.NotNil(t, res.Snapshot.Organization)
	assert.Equal(t, "org-3", res.Snapshot.Organization.ID)
}

func TestPullOverwritesPresentCollectionsWithoutPushingBack(t *testing.T) {
	local := newLocal(t)
	remote := &fakeRemote{read: transport.ReadResult{Success: true, Data: json.RawMessage(snapshotJSON)}}
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	o := New(remote, local, WithClock(func() time.Time { return clock }))
	local.SetPusher(o)

	require.NoError(t, local.SaveOrganization(domain.Organization{ID: "org-2"}, true))
	require.NoError(t, local.SaveProjects([]domain.Project{{ID: "p-local"}}, true))
	require.NoError(t, local.SaveSpecies([]domain.Species{{ID: "stale"}}, true))
	require.NoError(t, local.SaveSession(domain.Session{Token: "keep"}))
	require.NoError(t, local.SaveCurrentProject("p-local"))

	res, err := o.Pull(context.Background())
	require.NoError(t, err)
	local.Wait()

	assert.True(t, res.Success)
	assert.Empty(t, remote.snapshot(), "pulled data must not be pushed back")
	assert.Contains(t, res.Applied, domain.CollectionSpecies)
	assert.NotContains(t, res.Applied, domain.CollectionProjects)

	require.Len(t, local.Species(), 1)
	assert.Equal(t, "sp-1", local.Species()[0].ID)
	assert.Len(t, local.PartnerOrganizations(), 2)
	assert.Equal(t, "Mine", local.Organization().Name)
	assert.Equal(t, []domain.Project{{ID: "p-local"}}, local.Projects())
	assert.Equal(t, "keep", local.Session().Token)
	assert.Equal(t, "p-local", local.CurrentProject())
	assert.Equal(t, "lb", local.Settings().WeightUnit)
	assert.Equal(t, clock, o.Status().LastPull)
}

func TestPullFailureKeepsLocalDataAndClassifies(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want reconcile.Failure
	}{
		{"schema", &transport.Error{Kind: transport.KindServer, Status: 500, Message: `relation "arksync_records" does not exist (SQLSTATE 42P01)`}, reconcile.FailureSchemaNotProvisioned},
		{"permission", &transport.Error{Kind: transport.KindServer, Status: 500, Message: "permission denied for table arksync_records"}, reconcile.FailureSchemaNotProvisioned},
		{"network", &transport.Error{Kind: transport.KindNetwork, Message: "dial tcp: connection refused"}, reconcile.FailureNetwork},
		{"server", &transport.Error{Kind: transport.KindServer, Status: 500, Message: "Internal Server Error"}, reconcile.FailureServer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			local := newLocal(t)
			require.NoError(t, local.SaveSpecies([]domain.Species{{ID: "keep"}}, true))
			remote := &fakeRemote{read: transport.ReadResult{Success: false, Message: tc.err.Error(), Err: tc.err}}
			o := New(remote, local)

			res, err := o.Pull(context.Background())

			require.NoError(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, tc.want, res.Failure)
			assert.Equal(t, "keep", local.Species()[0].ID)
			st := o.Status()
			assert.Equal(t, tc.want, st.Failure)
			assert.Equal(t, tc.err.Error(), st.LastError)
			assert.True(t, st.LastPull.IsZero())
		})
	}
}

func TestFetchRemoteDataRejectsNonObjectSnapshot(t *testing.T) {
	remote := &fakeRemote{read: transport.ReadResult{Success: true, Data: json.RawMessage(`[1,2]`)}}
	res := New(remote, nil).FetchRemoteData(context.Background())
	assert.False(t, res.Success)
	assert.Equal(t, reconcile.FailureServer, res.Failure)
}

func TestUndecodableCollectionIsSkipped(t *testing.T) {
	remote := &fakeRemote{read: transport.ReadResult{Success: true, Data: json.RawMessage(`{"species":"oops","users":[{"id":"u1"}]}`)}}
	res := New(remote, nil).FetchRemoteData(context.Background())
	require.True(t, res.Success)
	assert.Nil(t, res.Snapshot.Species)
	assert.Len(t, res.Snapshot.Users, 1)
}

func TestBackgroundFailuresShowInStatus(t *testing.T) {
	o := New(&fakeRemote{}, nil)
	o.RecordFailure("push species", errors.New("network error: refused"))
	o.RecordFailure("push users", errors.New("server error: nope"))

	st := o.Status()
	assert.Equal(t, 2, st.BackgroundFailures)
	assert.Equal(t, "push users: server error: nope", st.LastBackgroundError)
}

func TestSaveTriggersExactlyOneRemoteCall(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		assert.Equal(t, "/api/collections/species/upsert", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"count":1}}`))
	}))
	defer srv.Close()

	local := newLocal(t)
	o := New(transport.New(srv.URL), local)
	local.SetPusher(o)
	list := []domain.Species{{ID: "sp-1", CommonName: "Okapi"}}

	require.NoError(t, local.SaveSpecies(list, true))
	local.Wait()
	assert.Equal(t, int32(0), atomic.LoadInt32(&hits))

	require.NoError(t, local.SaveSpecies(list, false))
	local.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestPullOfDeletedLanguagesDoesNotReseed(t *testing.T) {
	local := newLocal(t)
	remote := &fakeRemote{read: transport.ReadResult{Success: true, Data: json.RawMessage(`{
		"languages": [
			{"code":"en","name":"English","translations":{},"is_default":true,"is_deleted":true},
			{"code":"fr","name":"Français","translations":{},"is_deleted":true}
		]
	}`)}}
	o := New(remote, local)
	local.SetPusher(o)

	res, err := o.Pull(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Snapshot.Languages)
	assert.Contains(t, res.Applied, domain.CollectionLanguages)

	assert.Empty(t, local.Languages())
	local.Wait()
	assert.Empty(t, remote.snapshot(), "remote deletes must not be undone by a reseed")
	assert.Len(t, local.Snapshot().Languages, 2)
}

func TestStatusSurvivesRestart(t *testing.T) {
	store := localstore.New(localstore.NewMemoryBackend(), nil)
	local := records.New(store)
	netErr := &transport.Error{Kind: transport.KindNetwork, Message: "dial tcp: connection refused"}
	remote := &fakeRemote{read: transport.ReadResult{Success: false, Message: netErr.Error(), Err: netErr}}

	o := New(remote, local, WithStatusStore(store))
	_, err := o.Pull(context.Background())
	require.NoError(t, err)
	o.RecordFailure("push species", errors.New("server error: nope"))

	st := New(remote, local, WithStatusStore(store)).Status()
	assert.Equal(t, reconcile.FailureNetwork, st.Failure)
	assert.Equal(t, netErr.Error(), st.LastError)
	assert.Equal(t, 1, st.BackgroundFailures)
	assert.Equal(t, "push species: server error: nope", st.LastBackgroundError)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	remote.read = transport.ReadResult{Success: true, Data: json.RawMessage(`{}`)}
	_, err = New(remote, local, WithStatusStore(store), WithClock(func() time.Time { return clock })).Pull(context.Background())
	require.NoError(t, err)

	st = New(remote, local, WithStatusStore(store)).Status()
	assert.Equal(t, reconcile.FailureNone, st.Failure)
	assert.Empty(t, st.LastError)
	assert.True(t, clock.Equal(st.LastPull))
	assert.Equal(t, 1, st.BackgroundFailures)
}
