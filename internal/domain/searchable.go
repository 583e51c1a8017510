package domain

// IndexDocument is the denormalized representation of an entity stored in the
// full-text index: a namespace (the entity's table/collection name), the
// entity's stable id, and the declared searchable fields.
type IndexDocument struct {
	Namespace string
	ID        int64
	Fields    map[string]string
}

// Searchable is the capability an entity type implements to participate in
// full-text indexing. The change tracker filters transaction changes by this
// capability; entity types that do not implement it are never indexed.
type Searchable interface {
	IndexDocument() IndexDocument
}

// ChangeSet is the transaction-scoped record of searchable entities touched
// by a transaction. It is captured just before the transaction commits and
// consumed exactly once, immediately after the commit succeeds. If the
// commit fails the ChangeSet is discarded.
type ChangeSet struct {
	Added   []Searchable
	Updated []Searchable
	Deleted []Searchable
}

// Empty reports whether the change set contains no entities.
func (cs *ChangeSet) Empty() bool {
	return len(cs.Added) == 0 && len(cs.Updated) == 0 && len(cs.Deleted) == 0
}
