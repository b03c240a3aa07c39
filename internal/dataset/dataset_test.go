package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

// TestStats tests column statistics
func TestStats(t *testing.T) {
	ds := New([]string{"email", "ciudad", "vacia"})
	ds.Rows = []Row{
		{"email": "a@b.com", "ciudad": "Lima", "vacia": ""},
		{"email": "c@d.com", "ciudad": "Lima", "vacia": ""},
		{"email": "e@f.com", "ciudad": "Cusco", "vacia": ""},
		{"email": "", "ciudad": "Lima", "vacia": "x"},
	}

	t.Run("Uniqueness", func(t *testing.T) {
		stats := ds.Stats("email")
		if stats.DistinctCount != 3 {
			t.Errorf("Expected 3 distinct, got %d", stats.DistinctCount)
		}
		if stats.NullCount != 1 {
			t.Errorf("Expected 1 null, got %d", stats.NullCount)
		}
		// 3 distinct over 3 non-null
		if stats.UniquenessRatio != 1.0 {
			t.Errorf("Expected uniqueness 1.0, got %f", stats.UniquenessRatio)
		}
	})

	t.Run("Repeats", func(t *testing.T) {
		stats := ds.Stats("ciudad")
		if stats.DistinctCount != 2 {
			t.Errorf("Expected 2 distinct, got %d", stats.DistinctCount)
		}
		if stats.UniquenessRatio != 0.5 {
			t.Errorf("Expected uniqueness 0.5, got %f", stats.UniquenessRatio)
		}
	})

	t.Run("MostlyNull", func(t *testing.T) {
		stats := ds.Stats("vacia")
		if stats.NullRatio != 0.75 {
			t.Errorf("Expected null ratio 0.75, got %f", stats.NullRatio)
		}
	})

	t.Run("EmptyDataset", func(t *testing.T) {
		stats := New([]string{"a"}).Stats("a")
		if stats.RowCount != 0 || stats.UniquenessRatio != 0 {
			t.Errorf("Empty dataset should yield zero stats, got %+v", stats)
		}
	})
}

// TestSample tests bounded sampling
func TestSample(t *testing.T) {
	ds := New([]string{"v"})
	ds.Rows = []Row{{"v": "1"}, {"v": ""}, {"v": "3"}, {"v": "4"}}

	t.Run("SkipsNulls", func(t *testing.T) {
		sample := ds.Sample("v", 3)
		if len(sample) != 2 {
			t.Errorf("Expected 2 values, got %d", len(sample))
		}
	})

	t.Run("BoundedByRows", func(t *testing.T) {
		sample := ds.Sample("v", 100)
		if len(sample) != 3 {
			t.Errorf("Expected 3 values, got %d", len(sample))
		}
	})
}

// TestDetectFormat tests extension dispatch
func TestDetectFormat(t *testing.T) {
	cases := map[string]Format{
		"data.csv":     FormatCSV,
		"DATA.CSV":     FormatCSV,
		"export.txt":   FormatCSV,
		"data.tsv":     FormatTSV,
		"data.json":    FormatJSON,
		"data.jsonl":   FormatJSON,
		"data.parquet": FormatParquet,
	}
	for filename, want := range cases {
		got, err := DetectFormat(filename)
		if err != nil {
			t.Errorf("DetectFormat(%q) failed: %v", filename, err)
		}
		if got != want {
			t.Errorf("DetectFormat(%q) = %s, want %s", filename, got, want)
		}
	}

	if _, err := DetectFormat("data.xlsx"); err == nil {
		t.Error("Unsupported extension should error")
	}
}

// TestCSVRoundTrip tests delimited IO
func TestCSVRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clients.csv")

	ds := New([]string{"nombre", "email"})
	ds.Rows = []Row{
		{"nombre": "Maria", "email": "maria@example.com"},
		{"nombre": "Jose, Jr.", "email": ""},
	}

	if err := Save(ds, path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path, 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Columns) != 2 || loaded.Columns[0] != "nombre" {
		t.Errorf("Columns lost: %v", loaded.Columns)
	}
	if loaded.RowCount() != 2 {
		t.Fatalf("Expected 2 rows, got %d", loaded.RowCount())
	}
	if loaded.Rows[1]["nombre"] != "Jose, Jr." {
		t.Errorf("Quoted cell corrupted: %q", loaded.Rows[1]["nombre"])
	}
	if loaded.Rows[1]["email"] != "" {
		t.Errorf("Empty cell should stay null, got %q", loaded.Rows[1]["email"])
	}
}

// TestJSONLoad tests both accepted JSON shapes
func TestJSONLoad(t *testing.T) {
	dir := t.TempDir()

	t.Run("Array", func(t *testing.T) {
		path := filepath.Join(dir, "array.json")
		content := `[{"nombre":"Maria","edad":34},{"nombre":"Jose","edad":28}]`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		ds, err := Load(path, 0)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if ds.RowCount() != 2 {
			t.Fatalf("Expected 2 rows, got %d", ds.RowCount())
		}
		if ds.Rows[0]["edad"] != "34" {
			t.Errorf("Integer-ish number should stringify without decimals, got %q", ds.Rows[0]["edad"])
		}
	})

	t.Run("NDJSON", func(t *testing.T) {
		path := filepath.Join(dir, "lines.jsonl")
		content := "{\"nombre\":\"Maria\"}\n{\"nombre\":\"Jose\"}\n{\"nombre\":\"Ana\"}\n"
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		ds, err := Load(path, 0)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if ds.RowCount() != 3 {
			t.Errorf("Expected 3 rows, got %d", ds.RowCount())
		}
	})

	t.Run("NullBecomesEmpty", func(t *testing.T) {
		path := filepath.Join(dir, "nulls.json")
		content := `[{"nombre":"Maria","email":null}]`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		ds, err := Load(path, 0)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if ds.Rows[0]["email"] != "" {
			t.Errorf("JSON null should become empty string, got %q", ds.Rows[0]["email"])
		}
	})

	t.Run("MaxRows", func(t *testing.T) {
		path := filepath.Join(dir, "limited.json")
		content := `[{"v":"1"},{"v":"2"},{"v":"3"}]`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		ds, err := Load(path, 2)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if ds.RowCount() != 2 {
			t.Errorf("Expected 2 rows, got %d", ds.RowCount())
		}
	})
}

// TestSaveParquetFallsBack tests the CSV fallback for parquet targets
func TestSaveParquetFallsBack(t *testing.T) {
	dir := t.TempDir()
	ds := New([]string{"v"})
	ds.Rows = []Row{{"v": "1"}}

	target := filepath.Join(dir, "out.parquet")
	if err := Save(ds, target); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "out.csv")); err != nil {
		t.Error("Expected a .csv fallback file")
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Error("Expected no file at the .parquet path")
	}
	if got := SavePath(target); got != filepath.Join(dir, "out.csv") {
		t.Errorf("SavePath(%q) = %q, does not match the written file", target, got)
	}
}

// TestSavePath tests that the advertised output path matches what Save
// actually writes
func TestSavePath(t *testing.T) {
	cases := map[string]string{
		"out.csv":       "out.csv",
		"out.tsv":       "out.tsv",
		"out.json":      "out.json",
		"out.parquet":   "out.csv",
		"weird.xlsx":    "weird.csv",
		"dir/out.jsonl": "dir/out.jsonl",
	}
	for input, want := range cases {
		if got := SavePath(input); got != want {
			t.Errorf("SavePath(%q) = %q, want %q", input, got, want)
		}
	}
}

// TestSafeFilename tests upload name sanitization
func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"clients.csv":        "clients.csv",
		"../../etc/passwd":   "passwd",
		"mis datos 2024.csv": "mis_datos_2024.csv",
		"señas.csv":          "se_as.csv",
	}
	for input, want := range cases {
		if got := SafeFilename(input); got != want {
			t.Errorf("SafeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
