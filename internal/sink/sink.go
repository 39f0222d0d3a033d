package sink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"scanclean/internal/scantable"
)

// Output names the files written for one cleaned table.
type Output struct {
	CSVPath   string
	ArrayPath string
}

// Writer persists cleaned tables next to a destination path.
type Writer struct {
	CleanedSuffix  string
	ArrayExtension string
}

// CleanedPath turns "dir/x.csv" into "dir/x<suffix>.csv".
func CleanedPath(dest, suffix string) string {
	ext := filepath.Ext(dest)
	return strings.TrimSuffix(dest, ext) + suffix + ext
}

// ArrayPath turns "dir/x.csv" into "dir/x<arrayExt>".
func ArrayPath(dest, arrayExt string) string {
	return strings.TrimSuffix(dest, filepath.Ext(dest)) + arrayExt
}

// Paths returns where Write puts the outputs for dest.
func (w Writer) Paths(dest string) Output {
	return Output{
		CSVPath:   CleanedPath(dest, w.CleanedSuffix),
		ArrayPath: ArrayPath(dest, w.ArrayExtension),
	}
}

// Write creates dest's directory and writes both encodings of t.
func (w Writer) Write(t scantable.Table, dest string) (Output, error) {
	out := w.Paths(dest)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Output{}, fmt.Errorf("create output dir: %w", err)
	}
	if err := writeFile(out.CSVPath, t, WriteCSV); err != nil {
		return Output{}, err
	}
	if err := writeFile(out.ArrayPath, t, WriteArray); err != nil {
		return Output{}, err
	}
	return out, nil
}

func writeFile(path string, t scantable.Table, enc func(io.Writer, scantable.Table) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := enc(f, t); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
