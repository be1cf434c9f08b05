package events

// RecordAdded is emitted after the catalog appends a record.
type RecordAdded struct {
	Kind string // "author" or "book"
	ID   int
	Name string
}
