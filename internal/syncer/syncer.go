// Package syncer coordinates pushes and pulls between the local records and
// the remote record service.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"arksync/internal/localstore"
	"arksync/internal/logging"
	"arksync/internal/mapper"
	"arksync/internal/metrics"
	"arksync/internal/reconcile"
	"arksync/internal/records"
	"arksync/internal/transport"
	"arksync/pkg/domain"
)

// SyncPath is the combined snapshot read.
const SyncPath = "/api/sync"

// UpsertPath returns the upsert endpoint of a remote collection.
func UpsertPath(remote string) string { return "/api/collections/" + remote + "/upsert" }

// DeletePath returns the soft-delete endpoint of a remote collection.
func DeletePath(remote string) string { return "/api/collections/" + remote + "/delete" }

// Remote is the transport surface the orchestrator needs.
type Remote interface {
	Read(ctx context.Context, path string) transport.ReadResult
	Write(ctx context.Context, path string, body any) (json.RawMessage, error)
}

// Local is the local state the orchestrator reads and pulls into.
type Local interface {
	reconcile.Sink
	Organization() *domain.Organization
	Session() domain.Session
}

// Status is the background sync state shown to the user.
type Status struct {
	LastPull            time.Time         `json:"lastPull"`
	LastError           string            `json:"lastError,omitempty"`
	Failure             reconcile.Failure `json:"failure,omitempty"`
	BackgroundFailures  int               `json:"backgroundFailures"`
	LastBackgroundError string            `json:"lastBackgroundError,omitempty"`
}

// Orchestrator implements records.Pusher and the pull side of the sync.
type Orchestrator struct {
	remote  Remote
	local   Local
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
	state   *localstore.Store

	mu     sync.Mutex
	status Status
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

func WithLogger(l *zap.Logger) Option { return func(o *Orchestrator) { o.logger = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(o *Orchestrator) { o.now = now } }

// WithStatusStore keeps Status under domain.KeySyncStatus in s so it
// outlives the process.
func WithStatusStore(s *localstore.Store) Option { return func(o *Orchestrator) { o.state = s } }

// New returns an Orchestrator sending through remote. local may be nil for
// push-only use.
func New(remote Remote, local Local, opts ...Option) *Orchestrator {
	o := &Orchestrator{remote: remote, local: local, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = logging.OrNop(o.logger)
	if o.state != nil {
		o.status = localstore.Get(o.state, domain.KeySyncStatus, Status{})
	}
	return o
}

// updateStatus applies fn under the lock and persists the result when a
// status store is attached.
func (o *Orchestrator) updateStatus(fn func(*Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.status)
	if o.state == nil {
		return
	}
	if err := localstore.Set(o.state, domain.KeySyncStatus, o.status); err != nil {
		o.logger.Warn("saving sync status failed", zap.Error(err))
	}
}

var _ records.Pusher = (*Orchestrator)(nil)

func push[R any](ctx context.Context, o *Orchestrator, c domain.Collection, rows []R) error {
	if len(rows) == 0 {
		return nil
	}
	start := o.now()
	_, err := o.remote.Write(ctx, UpsertPath(c.Remote()), rows)
	o.metrics.Push(string(c), err, o.now().Sub(start))
	if err != nil {
		return fmt.Errorf("push %s: %w", c, err)
	}
	o.logger.Debug("pushed collection", zap.String("collection", string(c)), zap.Int("rows", len(rows)))
	return nil
}

func (o *Orchestrator) PushOrganizations(ctx context.Context, orgs []domain.Organization) error {
	return push(ctx, o, domain.CollectionOrganization, mapper.Map(orgs, mapper.OrganizationToRemote))
}

func (o *Orchestrator) PushUsers(ctx context.Context, users []domain.User) error {
	return push(ctx, o, domain.CollectionUsers, mapper.Map(users, mapper.UserToRemote))
}

func (o *Orchestrator) PushProjects(ctx context.Context, projects []domain.Project) error {
	return push(ctx, o, domain.CollectionProjects, mapper.Map(projects, mapper.ProjectToRemote))
}

func (o *Orchestrator) PushSpecies(ctx context.Context, species []domain.Species) error {
	return push(ctx, o, domain.CollectionSpecies, mapper.Map(species, mapper.SpeciesToRemote))
}

// PushIndividuals writes individuals in two passes. The first pass sends
// every individual with sire and dam cleared so all rows exist; the second,
// started only after the first returned, re-sends just the individuals that
// have a parent with the real references.
func (o *Orchestrator) PushIndividuals(ctx context.Context, individuals []domain.Individual) error {
	if len(individuals) == 0 {
		return nil
	}
	if err := push(ctx, o, domain.CollectionIndividuals, mapper.Map(individuals, mapper.IndividualToRemoteWithoutParents)); err != nil {
		return fmt.Errorf("pass 1: %w", err)
	}
	linked := make([]domain.Individual, 0, len(individuals))
	for _, ind := range individuals {
		if ind.HasParents() {
			linked = append(linked, ind)
		}
	}
	if err := push(ctx, o, domain.CollectionIndividuals, mapper.Map(linked, mapper.IndividualToRemote)); err != nil {
		return fmt.Errorf("pass 2: %w", err)
	}
	return nil
}

func (o *Orchestrator) PushBreedingEvents(ctx context.Context, events []domain.BreedingEvent) error {
	return push(ctx, o, domain.CollectionBreedingEvents, mapper.Map(events, mapper.BreedingEventToRemote))
}

func (o *Orchestrator) PushLoans(ctx context.Context, loans []domain.BreedingLoan) error {
	return push(ctx, o, domain.CollectionLoans, mapper.Map(loans, mapper.LoanToRemote))
}

func (o *Orchestrator) PushPartnerships(ctx context.Context, partnerships []domain.Partnership) error {
	return push(ctx, o, domain.CollectionPartnerships, mapper.Map(partnerships, mapper.PartnershipToRemote))
}

func (o *Orchestrator) PushLanguages(ctx context.Context, languages []domain.LanguageConfig) error {
	return push(ctx, o, domain.CollectionLanguages, mapper.Map(languages, mapper.LanguageToRemote))
}

func (o *Orchestrator) PushSettings(ctx context.Context, settings domain.SystemSettings) error {
	return push(ctx, o, domain.CollectionSettings, []mapper.SettingsRow{mapper.SettingsToRemote(settings)})
}

// PushAll sends every collection of d, soft-deleted records included so their
// flags reach the remote. Collections are pushed concurrently; every failure
// is reported.
func (o *Orchestrator) PushAll(ctx context.Context, d records.Dump) error {
	orgs := append([]domain.Organization{}, d.PartnerOrganizations...)
	if d.Organization != nil {
		orgs = append(orgs, *d.Organization)
	}
	steps := []func(context.Context) error{
		func(ctx context.Context) error { return o.PushOrganizations(ctx, orgs) },
		func(ctx context.Context) error { return o.PushUsers(ctx, d.Users) },
		func(ctx context.Context) error { return o.PushProjects(ctx, d.Projects) },
		func(ctx context.Context) error { return o.PushSpecies(ctx, d.Species) },
		func(ctx context.Context) error { return o.PushIndividuals(ctx, d.Individuals) },
		func(ctx context.Context) error { return o.PushBreedingEvents(ctx, d.BreedingEvents) },
		func(ctx context.Context) error { return o.PushLoans(ctx, d.Loans) },
		func(ctx context.Context) error { return o.PushPartnerships(ctx, d.Partnerships) },
		func(ctx context.Context) error { return o.PushLanguages(ctx, d.Languages) },
		func(ctx context.Context) error { return o.PushSettings(ctx, d.Settings) },
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, step := range steps {
		g.Go(func() error {
			if err := step(ctx); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// SoftDelete asks the remote to flag one record deleted, by code for
// languages and by id otherwise.
func (o *Orchestrator) SoftDelete(ctx context.Context, c domain.Collection, key string) error {
	body := map[string]string{c.KeyField(): key}
	if _, err := o.remote.Write(ctx, DeletePath(c.Remote()), body); err != nil {
		return fmt.Errorf("delete %s %s: %w", c, key, err)
	}
	return nil
}

// RecordFailure implements records.FailureSink.
func (o *Orchestrator) RecordFailure(task string, err error) {
	o.updateStatus(func(st *Status) {
		st.BackgroundFailures++
		st.LastBackgroundError = task + ": " + err.Error()
	})
}

// Status returns a copy of the current sync status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}
