package cleaning

import (
	"github.com/rs/zerolog"

	"scanclean/internal/config"
	"scanclean/internal/scantable"
)

// Stats summarizes one file's trip through the pipeline.
type Stats struct {
	RowsIn           int           `json:"rows_in"`
	RowsOut          int           `json:"rows_out"`
	ReferenceTriples int           `json:"reference_triples"`
	Repair           RepairStats   `json:"repair"`
	Stages           []StageResult `json:"stages"`
}

// Result is the cleaned table with its statistics and the reference set
// used to repair it.
type Result struct {
	Table     scantable.Table
	Reference ReferenceSet
	Stats     Stats
}

// Cleaner runs reference building, key repair and filtering for one table.
type Cleaner struct {
	Ranges           config.ValidRanges
	SupportThreshold int
	Logger           zerolog.Logger
}

// NewCleaner returns a Cleaner configured from cfg.
func NewCleaner(cfg config.Config, logger zerolog.Logger) *Cleaner {
	return &Cleaner{
		Ranges:           cfg.ValidRanges,
		SupportThreshold: cfg.SupportThreshold,
		Logger:           logger,
	}
}

// Clean returns the repaired and filtered copy of t. t is not modified.
func (c *Cleaner) Clean(t scantable.Table) Result {
	ref := BuildReferenceSet(t, c.Ranges, c.SupportThreshold)
	if ref.Len() == 0 && len(t.Rows) > 0 {
		c.Logger.Warn().
			Str("file", t.Path).
			Int("threshold", c.SupportThreshold).
			Msg("no key triple meets the support threshold; every row will be dropped")
	}

	repaired, rst := RepairKeys(t, ref)
	filtered, stages := Filter(repaired, ref, c.Ranges)

	st := Stats{
		RowsIn:           len(t.Rows),
		RowsOut:          len(filtered.Rows),
		ReferenceTriples: ref.Len(),
		Repair:           rst,
		Stages:           stages,
	}
	c.Logger.Debug().
		Str("file", t.Path).
		Int("rows_in", st.RowsIn).
		Int("rows_out", st.RowsOut).
		Int("reference", st.ReferenceTriples).
		Int("repaired", rst.Repaired).
		Int("unresolved", rst.Unresolved).
		Msg("cleaned table")
	return Result{Table: filtered, Reference: ref, Stats: st}
}
