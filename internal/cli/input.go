package cli

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/iadas/internal/querybuild"
)

// readInput reads path, or in when path is "-".
func readInput(path string, in io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(in)
	}
	return os.ReadFile(path)
}

// LoadFilter reads a filter file. YAML and JSON are both accepted.
func LoadFilter(path string, in io.Reader) (querybuild.Filter, error) {
	var f querybuild.Filter
	data, err := readInput(path, in)
	if err != nil {
		return f, err
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decoding filter %s: %w", path, err)
	}
	return f, nil
}

// LoadRecord reads a record file, a flat mapping of field names to values.
// Scalar values of any YAML type are kept as their source text.
func LoadRecord(path string, in io.Reader) (querybuild.Record, error) {
	data, err := readInput(path, in)
	if err != nil {
		return nil, err
	}
	rec := querybuild.Record{}
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding record %s: %w", path, err)
	}
	return rec, nil
}
