package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"arksync/internal/mapper"
	"arksync/internal/reconcile"
	"arksync/pkg/domain"
)

// PullResult is the outcome of fetching the remote snapshot. On failure
// Snapshot is empty and Failure says whether the remote is unreachable,
// unprovisioned or otherwise failing.
type PullResult struct {
	Success  bool
	Message  string
	Failure  reconcile.Failure
	Snapshot reconcile.Snapshot
	// Applied lists the collections written locally by Pull.
	Applied []domain.Collection

	// languageTombstones are the remote languages flagged deleted. Pull
	// stores them so the local collection is not mistaken for empty and
	// reseeded over the remote deletes.
	languageTombstones []domain.LanguageConfig
}

// FetchRemoteData reads the combined snapshot and maps every present
// collection into domain shape with soft-deleted rows dropped. Organizations
// are split into this client's own and its partners. Nothing is written
// locally.
func (o *Orchestrator) FetchRemoteData(ctx context.Context) PullResult {
	res := o.remote.Read(ctx, SyncPath)
	if !res.Success {
		failure := reconcile.ClassifyError(res.Err)
		if res.Err == nil {
			failure = reconcile.Classify(res.Message)
		}
		o.metrics.Pull(string(failure))
		return PullResult{Success: false, Message: res.Message, Failure: failure}
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(res.Data, &payload); err != nil {
		o.metrics.Pull(string(reconcile.FailureServer))
		return PullResult{Success: false, Message: "decode snapshot: " + err.Error(), Failure: reconcile.FailureServer}
	}

	var snap reconcile.Snapshot
	var tombstones []domain.LanguageConfig
	if orgs, ok := rows(o, payload, domain.RemoteOrganizations, mapper.OrganizationFromRemote); ok {
		snap.Organization, snap.PartnerOrganizations = reconcile.SplitOrganizations(reconcile.Active(orgs), o.mineID())
	}
	if v, ok := rows(o, payload, string(domain.CollectionUsers), mapper.UserFromRemote); ok {
		snap.Users = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionProjects), mapper.ProjectFromRemote); ok {
		snap.Projects = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionSpecies), mapper.SpeciesFromRemote); ok {
		snap.Species = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionIndividuals), mapper.IndividualFromRemote); ok {
		snap.Individuals = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionBreedingEvents), mapper.BreedingEventFromRemote); ok {
		snap.BreedingEvents = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionLoans), mapper.LoanFromRemote); ok {
		snap.Loans = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionPartnerships), mapper.PartnershipFromRemote); ok {
		snap.Partnerships = reconcile.Active(v)
	}
	if v, ok := rows(o, payload, string(domain.CollectionLanguages), mapper.LanguageFromRemote); ok {
		snap.Languages = reconcile.Active(v)
		for _, l := range v {
			if l.Deleted {
				tombstones = append(tombstones, l)
			}
		}
	}
	if v, ok := rows(o, payload, string(domain.CollectionSettings), func(r mapper.SettingsRow) mapper.SettingsRow { return r }); ok {
		for _, row := range v {
			if row.ID == domain.SettingsID {
				s := mapper.SettingsFromRemote(row)
				snap.Settings = &s
				break
			}
		}
	}

	o.metrics.Pull("success")
	return PullResult{Success: true, Snapshot: snap, languageTombstones: tombstones}
}

// rows decodes the named collection and maps it. ok is false when the
// collection is absent, null or undecodable; such a collection is skipped.
func rows[R, D any](o *Orchestrator, payload map[string]json.RawMessage, name string, fn func(R) D) ([]D, bool) {
	raw, present := payload[name]
	if !present || string(raw) == "null" {
		return nil, false
	}
	var in []R
	if err := json.Unmarshal(raw, &in); err != nil {
		o.logger.Warn("skipping undecodable collection", zap.String("collection", name), zap.Error(err))
		return nil, false
	}
	return mapper.Map(in, fn), true
}

// mineID is the locally known organization id, falling back to the
// organization of the signed-in user.
func (o *Orchestrator) mineID() string {
	if o.local == nil {
		return ""
	}
	if org := o.local.Organization(); org != nil && org.ID != "" {
		return org.ID
	}
	return o.local.Session().User.OrgID
}

// Pull fetches the snapshot and overwrites every present local collection
// without pushing it back. A failed fetch leaves local data untouched and is
// reported through the result, not the error; the error is reserved for
// local writes that failed.
func (o *Orchestrator) Pull(ctx context.Context) (PullResult, error) {
	if o.local == nil {
		return PullResult{}, fmt.Errorf("pull: no local records attached")
	}
	res := o.FetchRemoteData(ctx)
	if !res.Success {
		o.setPullFailure(res)
		o.logger.Info("pull failed, working from local cache",
			zap.String("failure", string(res.Failure)),
			zap.String("message", res.Message),
		)
		return res, nil
	}
	stored := res.Snapshot
	if len(res.languageTombstones) > 0 {
		stored.Languages = append(append([]domain.LanguageConfig{}, stored.Languages...), res.languageTombstones...)
	}
	applied, err := reconcile.Apply(stored, o.local)
	res.Applied = applied
	if err != nil {
		res.Success = false
		res.Message = err.Error()
		res.Failure = reconcile.FailureServer
		o.setPullFailure(res)
		return res, err
	}
	o.updateStatus(func(st *Status) {
		st.LastPull = o.now()
		st.LastError = ""
		st.Failure = reconcile.FailureNone
	})
	o.logger.Info("pull applied", zap.Int("collections", len(applied)))
	return res, nil
}

func (o *Orchestrator) setPullFailure(res PullResult) {
	o.updateStatus(func(st *Status) {
		st.LastError = res.Message
		st.Failure = res.Failure
	})
}
