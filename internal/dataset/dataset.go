package dataset

// Row maps a column name to its cell value. Cells are carried as strings;
// an empty string stands for a null/missing cell, matching how upstream
// spreadsheet tooling flattens NA values.
type Row map[string]string

// Dataset is an ordered table: column names plus rows. The engine never
// mutates a loaded dataset in place; transformations produce a new one.
type Dataset struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// New creates an empty dataset with the given column order.
func New(columns []string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols, Rows: make([]Row, 0)}
}

// RowCount returns the number of rows.
func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// Head returns up to n leading rows without copying cell values.
func (d *Dataset) Head(n int) []Row {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	return d.Rows[:n]
}

// HasColumn reports whether the dataset contains the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// ColumnStats holds the per-column statistics consumed by risk evaluation.
type ColumnStats struct {
	RowCount      int     `json:"row_count"`
	DistinctCount int     `json:"distinct_count"`
	NullCount     int     `json:"null_count"`
	NullRatio     float64 `json:"null_ratio"`
	// UniquenessRatio is distinct non-null values over non-null rows.
	UniquenessRatio float64 `json:"uniqueness_ratio"`
}

// Stats computes column statistics over the full dataset.
func (d *Dataset) Stats(column string) ColumnStats {
	stats := ColumnStats{RowCount: len(d.Rows)}
	if len(d.Rows) == 0 {
		return stats
	}

	distinct := make(map[string]struct{})
	for _, row := range d.Rows {
		v := row[column]
		if v == "" {
			stats.NullCount++
			continue
		}
		distinct[v] = struct{}{}
	}

	stats.DistinctCount = len(distinct)
	stats.NullRatio = float64(stats.NullCount) / float64(stats.RowCount)

	nonNull := stats.RowCount - stats.NullCount
	if nonNull > 0 {
		stats.UniquenessRatio = float64(stats.DistinctCount) / float64(nonNull)
	}

	return stats
}

// Sample returns the non-null values of a column from up to sampleRows
// leading rows. Detection operates on this bounded sample, never the full
// dataset.
func (d *Dataset) Sample(column string, sampleRows int) []string {
	if sampleRows > len(d.Rows) {
		sampleRows = len(d.Rows)
	}

	values := make([]string, 0, sampleRows)
	for _, row := range d.Rows[:sampleRows] {
		if v := row[column]; v != "" {
			values = append(values, v)
		}
	}
	return values
}
