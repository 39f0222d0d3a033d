// Package batch walks an input tree of scan batches and cleans every file,
// mirroring the layout under an output root.
package batch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Job is one input file and the mirrored destination path handed to the sink.
type Job struct {
	Input  string
	Output string
}

// Discover lists, for each subdirectory of inputRoot, the files ending in ext.
// Subdirectories that cannot be read are reported in the returned error while
// the jobs found elsewhere are still returned.
func Discover(inputRoot, outputRoot, ext string) ([]Job, error) {
	entries, err := os.ReadDir(inputRoot)
	if err != nil {
		return nil, fmt.Errorf("read input root: %w", err)
	}
	var jobs []Job
	var errs []error
	for _, dir := range entries {
		if !isDir(inputRoot, dir) {
			continue
		}
		inDir := filepath.Join(inputRoot, dir.Name())
		files, err := os.ReadDir(inDir)
		if err != nil {
			errs = append(errs, fmt.Errorf("read %s: %w", inDir, err))
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ext) {
				continue
			}
			jobs = append(jobs, Job{
				Input:  filepath.Join(inDir, f.Name()),
				Output: filepath.Join(outputRoot, dir.Name(), f.Name()),
			})
		}
	}
	return jobs, errors.Join(errs...)
}

// isDir follows symlinks so linked year directories are walked too.
func isDir(root string, e os.DirEntry) bool {
	if e.IsDir() {
		return true
	}
	if e.Type()&os.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(filepath.Join(root, e.Name()))
	return err == nil && fi.IsDir()
}
