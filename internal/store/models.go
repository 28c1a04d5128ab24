package store

import "time"

// Item represents a work item persisted in SQLite.
type Item struct {
	ID          int64
	Priority    int64
	Category    string
	Name        string
	Description string
	Steps       []string
	Passes      bool
	InProgress  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClaimedAt   *time.Time
}

// Eligible reports whether the item can currently be claimed.
func (i Item) Eligible() bool {
	return !i.Passes && !i.InProgress
}

// Draft describes a work item to insert. A zero Priority means the store
// assigns the next available priority atomically at insert time.
type Draft struct {
	Priority    int64
	Category    string
	Name        string
	Description string
	Steps       []string
}

// Stats aggregates queue counts for status output.
type Stats struct {
	Total      int
	Eligible   int
	InProgress int
	Passed     int
}

// DatabaseHealth captures diagnostic information about the work-item database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
