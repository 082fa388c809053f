package records

import "arksync/pkg/domain"

// DefaultLanguages is the language set seeded into an empty store.
func DefaultLanguages() []domain.LanguageConfig {
	return []domain.LanguageConfig{
		{Code: "en", Name: "English", IsDefault: true, Translations: map[string]string{
			"individuals": "Individuals", "species": "Species", "loans": "Breeding loans", "sync": "Sync",
		}},
		{Code: "es", Name: "Español", Translations: map[string]string{
			"individuals": "Individuos", "species": "Especies", "loans": "Préstamos de cría", "sync": "Sincronizar",
		}},
		{Code: "fr", Name: "Français", Translations: map[string]string{
			"individuals": "Individus", "species": "Espèces", "loans": "Prêts d'élevage", "sync": "Synchroniser",
		}},
		{Code: "de", Name: "Deutsch", Translations: map[string]string{
			"individuals": "Individuen", "species": "Arten", "loans": "Zuchtleihgaben", "sync": "Synchronisieren",
		}},
	}
}
