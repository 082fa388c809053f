// Package records exposes one typed accessor pair per synchronized
// collection on top of the local store. Reads filter soft-deleted records and
// never fail. Saves write locally first and, unless sync is skipped, push the
// collection in the background.
package records

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"arksync/internal/localstore"
	"arksync/internal/logging"
	"arksync/internal/metrics"
	"arksync/internal/reconcile"
	"arksync/pkg/domain"
)

// Pusher sends collections to the remote service. syncer.Orchestrator is the
// production implementation.
type Pusher interface {
	PushOrganizations(ctx context.Context, orgs []domain.Organization) error
	PushUsers(ctx context.Context, users []domain.User) error
	PushProjects(ctx context.Context, projects []domain.Project) error
	PushSpecies(ctx context.Context, species []domain.Species) error
	PushIndividuals(ctx context.Context, individuals []domain.Individual) error
	PushBreedingEvents(ctx context.Context, events []domain.BreedingEvent) error
	PushLoans(ctx context.Context, loans []domain.BreedingLoan) error
	PushPartnerships(ctx context.Context, partnerships []domain.Partnership) error
	PushLanguages(ctx context.Context, languages []domain.LanguageConfig) error
	PushSettings(ctx context.Context, settings domain.SystemSettings) error
	SoftDelete(ctx context.Context, collection domain.Collection, key string) error
}

// Records is the typed view over the local store.
type Records struct {
	store  *localstore.Store
	tasks  *Tasks
	logger *zap.Logger

	pmu    sync.RWMutex
	pusher Pusher

	// mu serializes read-modify-write sequences (seeding, soft deletes).
	mu sync.Mutex
}

// Option configures Records.
type Option func(*options)

type options struct {
	ctx     context.Context
	logger  *zap.Logger
	metrics *metrics.Metrics
	pusher  Pusher
}

// WithContext sets the context background pushes run under.
func WithContext(ctx context.Context) Option { return func(o *options) { o.ctx = ctx } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithMetrics sets the metrics sink for background failures.
func WithMetrics(m *metrics.Metrics) Option { return func(o *options) { o.metrics = m } }

// WithPusher sets the remote pusher. Without one, saves stay local.
func WithPusher(p Pusher) Option { return func(o *options) { o.pusher = p } }

// New returns Records over store.
func New(store *localstore.Store, opts ...Option) *Records {
	o := options{ctx: context.Background()}
	for _, opt := range opts {
		opt(&o)
	}
	logger := logging.OrNop(o.logger)
	return &Records{
		store:  store,
		tasks:  NewTasks(o.ctx, logger, o.metrics),
		logger: logger,
		pusher: o.pusher,
	}
}

// SetPusher attaches the pusher after construction, for callers whose pusher
// itself depends on Records.
func (r *Records) SetPusher(p Pusher) {
	r.pmu.Lock()
	r.pusher = p
	r.pmu.Unlock()
}

// SetFailureSink routes background failures to s.
func (r *Records) SetFailureSink(s FailureSink) { r.tasks.SetFailureSink(s) }

// Wait blocks until every background push has finished.
func (r *Records) Wait() { r.tasks.Wait() }

// Store returns the underlying local store.
func (r *Records) Store() *localstore.Store { return r.store }

func (r *Records) currentPusher() Pusher {
	r.pmu.RLock()
	defer r.pmu.RUnlock()
	return r.pusher
}

// save writes v under c and, unless skip, fires push in the background.
func save[T any](r *Records, c domain.Collection, v T, skip bool, push func(context.Context, Pusher) error) error {
	if err := localstore.Set(r.store, string(c), v); err != nil {
		return fmt.Errorf("save %s: %w", c, err)
	}
	if skip {
		return nil
	}
	p := r.currentPusher()
	if p == nil {
		return nil
	}
	r.tasks.Go("push "+string(c), func(ctx context.Context) error {
		return push(ctx, p)
	})
	return nil
}

func list[T domain.Deletable](r *Records, c domain.Collection) []T {
	return reconcile.Active(localstore.Get[[]T](r.store, string(c), nil))
}

// Organization returns this client's organization, or nil when none is
// stored or it was soft-deleted.
func (r *Records) Organization() *domain.Organization {
	org := localstore.Get[*domain.Organization](r.store, string(domain.CollectionOrganization), nil)
	if org == nil || org.Deleted || org.ID == "" {
		return nil
	}
	return org
}

func (r *Records) SaveOrganization(v domain.Organization, skipSync bool) error {
	return save(r, domain.CollectionOrganization, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushOrganizations(ctx, []domain.Organization{v})
	})
}

func (r *Records) PartnerOrganizations() []domain.Organization {
	return list[domain.Organization](r, domain.CollectionPartnerOrganizations)
}

func (r *Records) SavePartnerOrganizations(v []domain.Organization, skipSync bool) error {
	return save(r, domain.CollectionPartnerOrganizations, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushOrganizations(ctx, v)
	})
}

func (r *Records) Users() []domain.User {
	return list[domain.User](r, domain.CollectionUsers)
}

func (r *Records) SaveUsers(v []domain.User, skipSync bool) error {
	return save(r, domain.CollectionUsers, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushUsers(ctx, v)
	})
}

func (r *Records) Projects() []domain.Project {
	return list[domain.Project](r, domain.CollectionProjects)
}

func (r *Records) SaveProjects(v []domain.Project, skipSync bool) error {
	return save(r, domain.CollectionProjects, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushProjects(ctx, v)
	})
}

func (r *Records) Species() []domain.Species {
	return list[domain.Species](r, domain.CollectionSpecies)
}

func (r *Records) SaveSpecies(v []domain.Species, skipSync bool) error {
	return save(r, domain.CollectionSpecies, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushSpecies(ctx, v)
	})
}

func (r *Records) Individuals() []domain.Individual {
	return list[domain.Individual](r, domain.CollectionIndividuals)
}

func (r *Records) SaveIndividuals(v []domain.Individual, skipSync bool) error {
	return save(r, domain.CollectionIndividuals, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushIndividuals(ctx, v)
	})
}

func (r *Records) BreedingEvents() []domain.BreedingEvent {
	return list[domain.BreedingEvent](r, domain.CollectionBreedingEvents)
}

func (r *Records) SaveBreedingEvents(v []domain.BreedingEvent, skipSync bool) error {
	return save(r, domain.CollectionBreedingEvents, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushBreedingEvents(ctx, v)
	})
}

func (r *Records) Loans() []domain.BreedingLoan {
	return list[domain.BreedingLoan](r, domain.CollectionLoans)
}

func (r *Records) SaveLoans(v []domain.BreedingLoan, skipSync bool) error {
	return save(r, domain.CollectionLoans, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushLoans(ctx, v)
	})
}

func (r *Records) Partnerships() []domain.Partnership {
	return list[domain.Partnership](r, domain.CollectionPartnerships)
}

func (r *Records) SavePartnerships(v []domain.Partnership, skipSync bool) error {
	return save(r, domain.CollectionPartnerships, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushPartnerships(ctx, v)
	})
}

// Languages returns the configured languages, seeding the built-in set the
// first time the collection is found empty.
func (r *Records) Languages() []domain.LanguageConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := localstore.Get[[]domain.LanguageConfig](r.store, string(domain.CollectionLanguages), nil)
	if len(stored) > 0 {
		return reconcile.Active(stored)
	}
	seed := DefaultLanguages()
	if err := r.SaveLanguages(seed, false); err != nil {
		r.logger.Warn("seeding languages failed", zap.Error(err))
	}
	return seed
}

func (r *Records) SaveLanguages(v []domain.LanguageConfig, skipSync bool) error {
	return save(r, domain.CollectionLanguages, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushLanguages(ctx, v)
	})
}

// Settings returns the stored settings or the defaults.
func (r *Records) Settings() domain.SystemSettings {
	return localstore.Get(r.store, string(domain.CollectionSettings), domain.DefaultSettings())
}

func (r *Records) SaveSettings(v domain.SystemSettings, skipSync bool) error {
	return save(r, domain.CollectionSettings, v, skipSync, func(ctx context.Context, p Pusher) error {
		return p.PushSettings(ctx, v)
	})
}

// Session returns the stored session. It is never pushed.
func (r *Records) Session() domain.Session {
	return localstore.Get(r.store, domain.KeySession, domain.Session{})
}

func (r *Records) SaveSession(s domain.Session) error {
	return localstore.Set(r.store, domain.KeySession, s)
}

func (r *Records) ClearSession() error {
	return localstore.Set(r.store, domain.KeySession, domain.Session{})
}

// Token returns the session token while it is valid, for use as a bearer
// token source.
func (r *Records) Token() string {
	s := r.Session()
	if !s.Valid(time.Now()) {
		return ""
	}
	return s.Token
}

// CurrentProject returns the selected project id. It is never pushed.
func (r *Records) CurrentProject() string {
	return localstore.Get(r.store, domain.KeyCurrentProject, "")
}

func (r *Records) SaveCurrentProject(id string) error {
	return localstore.Set(r.store, domain.KeyCurrentProject, id)
}

var _ reconcile.Sink = (*Records)(nil)
