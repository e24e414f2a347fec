// Package model defines the domain types shared by the extraction,
// canonicalization, and load stages.
package model

import "time"

// Profile is one canonical adviser row produced by the mapping stage.
// AUM and EmployeeCount are always non-negative; unparseable raw values
// coerce to 0. Services and ClientTypes are comma-joined label sets.
type Profile struct {
	FirmName      string `csv:"firm_name"`
	CRDNumber     string `csv:"crd_number"`
	SECNumber     string `csv:"sec_number"`
	City          string `csv:"city"`
	State         string `csv:"state"`
	ZipCode       string `csv:"zip_code"`
	Address       string `csv:"address"`
	AUM           int64  `csv:"aum"`
	EmployeeCount int    `csv:"employee_count"`
	IsRegistered  bool   `csv:"is_registered"`
	Services      string `csv:"services"`
	ClientTypes   string `csv:"client_types"`
	DataSource    string `csv:"data_source"`
	LastUpdated   string `csv:"last_updated"`

	// Private placement enrichment, populated by the placements stage.
	PrivateFundCount int64  `csv:"private_fund_count,omitempty"`
	PrivateFundAUM   int64  `csv:"private_fund_aum,omitempty"`
	PlacementsAsOf   string `csv:"placements_as_of,omitempty"`
}

// Narrative is one synthesized description keyed by CRD number.
type Narrative struct {
	CRDNumber string `json:"crd_number"`
	Narrative string `json:"narrative"`
	Source    string `json:"source"`
}

// Adviser is the persisted identity row. CIK is the natural key: a valid
// SEC number when one exists, otherwise a generated surrogate.
type Adviser struct {
	AdviserPK int64
	CIK       string
	LegalName string
	CRDNumber string
	City      string
	State     string
	ZipCode   string
	Address   string
}

// Filing is one snapshot of an adviser's reported metrics.
type Filing struct {
	FilingPK      int64
	AdviserFK     int64
	FilingDate    time.Time
	TotalAUM      int64
	EmployeeCount int
	Services      string
	ClientTypes   string
}

// NarrativeRecord is a persisted narrative linked to its adviser and filing.
type NarrativeRecord struct {
	NarrativePK   int64
	AdviserFK     int64
	FilingFK      int64
	NarrativeType string
	NarrativeText string
	Source        string
	Embedding     []float32
}

// RunStatus enumerates load_log run states.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// RunEntry is a row in the load_log table.
type RunEntry struct {
	ID          string
	Stage       string
	Status      RunStatus
	StartedAt   time.Time
	CompletedAt *time.Time
	RowsWritten int64
	Error       string
	Metadata    map[string]any
}
