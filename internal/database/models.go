package database

// QueryLog is one row of the append-only query log. Rows are never updated
// or deleted; the id is assigned by sqlite's autoincrement, which keeps it
// monotonically increasing.
type QueryLog struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Timestamp    string `gorm:"not null" json:"timestamp"`
	CaseType     string `json:"case_type"`
	CaseNumber   string `json:"case_number"`
	FilingYear   string `json:"filing_year"`
	ResponseData string `gorm:"type:text" json:"response_data"`
}

func (QueryLog) TableName() string {
	return "queries_log"
}
