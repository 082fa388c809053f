package domain

// Deletable is implemented by every record carrying a soft-delete flag.
type Deletable interface {
	IsDeleted() bool
}

func (o Organization) IsDeleted() bool   { return o.Deleted }
func (p Project) IsDeleted() bool        { return p.Deleted }
func (u User) IsDeleted() bool           { return u.Deleted }
func (s Species) IsDeleted() bool        { return s.Deleted }
func (i Individual) IsDeleted() bool     { return i.Deleted }
func (b BreedingEvent) IsDeleted() bool  { return b.Deleted }
func (l BreedingLoan) IsDeleted() bool   { return l.Deleted }
func (p Partnership) IsDeleted() bool    { return p.Deleted }
func (l LanguageConfig) IsDeleted() bool { return l.Deleted }
