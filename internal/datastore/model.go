package datastore

// MarkRecord is one attendance mark mirrored from the CSV ledger. The ledger
// file stays authoritative; this table exists for dashboard history queries.
type MarkRecord struct {
	ID     uint   `gorm:"primaryKey"`
	Name   string `gorm:"index:idx_marks_name_date,priority:1"`
	Date   string `gorm:"index:idx_marks_name_date,priority:2;index:idx_marks_date"` // date in YYYY-MM-DD
	Time   string // time of the mark in HH:MM:SS
	Status string // Early, Present or Absent
}
