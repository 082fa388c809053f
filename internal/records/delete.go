package records

import (
	"context"
	"fmt"

	"arksync/internal/localstore"
	"arksync/pkg/domain"
)

// NotFoundError reports a soft delete of a key that is not stored locally.
type NotFoundError struct {
	Collection domain.Collection
	Key        string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Collection, e.Key)
}

// softDelete marks the record with the given key deleted, saves the
// collection without pushing it, then asks the remote to flag the same record
// in the background. Local reads hide the record immediately; the remote
// catches up when the call lands.
func softDelete[T any](r *Records, c domain.Collection, key string, keyOf func(T) string, mark func(*T)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	items := localstore.Get[[]T](r.store, string(c), nil)
	found := false
	for i := range items {
		if keyOf(items[i]) == key {
			mark(&items[i])
			found = true
		}
	}
	if !found {
		return NotFoundError{Collection: c, Key: key}
	}
	if err := save(r, c, items, true, nil); err != nil {
		return err
	}
	if p := r.currentPusher(); p != nil {
		r.tasks.Go("delete "+string(c), func(ctx context.Context) error {
			return p.SoftDelete(ctx, c, key)
		})
	}
	return nil
}

func (r *Records) SoftDeleteProject(id string) error {
	return softDelete(r, domain.CollectionProjects, id,
		func(v domain.Project) string { return v.ID }, func(v *domain.Project) { v.Deleted = true })
}

func (r *Records) SoftDeleteUser(id string) error {
	return softDelete(r, domain.CollectionUsers, id,
		func(v domain.User) string { return v.ID }, func(v *domain.User) { v.Deleted = true })
}

func (r *Records) SoftDeleteSpecies(id string) error {
	return softDelete(r, domain.CollectionSpecies, id,
		func(v domain.Species) string { return v.ID }, func(v *domain.Species) { v.Deleted = true })
}

func (r *Records) SoftDeleteIndividual(id string) error {
	return softDelete(r, domain.CollectionIndividuals, id,
		func(v domain.Individual) string { return v.ID }, func(v *domain.Individual) { v.Deleted = true })
}

func (r *Records) SoftDeleteBreedingEvent(id string) error {
	return softDelete(r, domain.CollectionBreedingEvents, id,
		func(v domain.BreedingEvent) string { return v.ID }, func(v *domain.BreedingEvent) { v.Deleted = true })
}

func (r *Records) SoftDeleteLoan(id string) error {
	return softDelete(r, domain.CollectionLoans, id,
		func(v domain.BreedingLoan) string { return v.ID }, func(v *domain.BreedingLoan) { v.Deleted = true })
}

func (r *Records) SoftDeletePartnership(id string) error {
	return softDelete(r, domain.CollectionPartnerships, id,
		func(v domain.Partnership) string { return v.ID }, func(v *domain.Partnership) { v.Deleted = true })
}

// SoftDeleteLanguage flags a language by code.
func (r *Records) SoftDeleteLanguage(code string) error {
	return softDelete(r, domain.CollectionLanguages, code,
		func(v domain.LanguageConfig) string { return v.Code }, func(v *domain.LanguageConfig) { v.Deleted = true })
}
