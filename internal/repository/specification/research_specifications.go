package specification

import "gorm.io/gorm"

// ByCompany filters rows by their company tag
type ByCompany struct {
	Name string
}

func (s ByCompany) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("company = ?", s.Name)
}

// BySessionID filters rows by the session that produced them
type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// BySourceType filters documents by origin ("upload", "web", "manual")
type BySourceType struct {
	SourceType string
}

func (s BySourceType) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_type = ?", s.SourceType)
}

// Limit caps the result set
type Limit struct {
	N int
}

func (s Limit) Apply(db *gorm.DB) *gorm.DB {
	return db.Limit(s.N)
}
