package changeset

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Failure is one line of the failure report: label|error.
type Failure struct {
	Label  string
	Reason string
}

// FileRepository reads change sets from, and writes failure reports to, plain
// text files.
type FileRepository struct {
	sourcesPaths  []string
	failureTarget string
}

func NewFileRepository(sources []string, failurePath string) *FileRepository {
	return &FileRepository{sourcesPaths: sources, failureTarget: failurePath}
}

// LoadPaths reads every source file, one path per line. Blank lines and lines
// starting with # are ignored. Order and duplicates are preserved.
func (r *FileRepository) LoadPaths() ([]FilePath, error) {
	var out []FilePath
	for _, path := range r.sourcesPaths {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open paths file %s: %w", path, err)
		}

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			out = append(out, line)
		}

		if err := scanner.Err(); err != nil {
			file.Close()
			return nil, fmt.Errorf("read paths file %s: %w", path, err)
		}
		file.Close()
	}
	return out, nil
}

// SaveFailures overwrites the failure report. A repository without a target
// is a no-op.
func (r *FileRepository) SaveFailures(failures []Failure) error {
	if r.failureTarget == "" {
		return nil
	}
	file, err := os.Create(r.failureTarget)
	if err != nil {
		return fmt.Errorf("create failure report: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, f := range failures {
		reason := strings.ReplaceAll(strings.TrimSpace(f.Reason), "\n", " ")
		if _, err := fmt.Fprintf(writer, "%s|%s\n", strings.TrimSpace(f.Label), reason); err != nil {
			file.Close()
			return fmt.Errorf("write failure report: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush failure report: %w", err)
	}
	return file.Close()
}

// LoadFailures reads back a report written by SaveFailures.
func (r *FileRepository) LoadFailures() ([]Failure, error) {
	b, err := os.ReadFile(r.failureTarget)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read failure report: %w", err)
	}

	var out []Failure
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, reason, _ := strings.Cut(line, "|")
		out = append(out, Failure{Label: label, Reason: reason})
	}
	return out, nil
}
