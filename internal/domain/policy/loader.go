package policy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the on-disk form of a policy set.
type Document struct {
	LoanPolicies    []LoanPolicy    `yaml:"loan_policies"`
	RequestPolicies []RequestPolicy `yaml:"request_policies"`
	Rules           RuleSet         `yaml:"circulation_rules"`
}

// LoadFromFile reads a policy Document from a YAML file.
func LoadFromFile(path string) (*Document, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read policy file %s: %w", path, err)
	}

	var d Document
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("validate policy file %s: %w", path, err)
	}

	return &d, nil
}

// LoadFromDirectory merges all .yaml/.yml files from a directory, in name
// order, into one Document. Rules are appended so earlier files win on match.
// Missing directories return nil (not an error).
func LoadFromDirectory(dir string) (*Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read policy directory %s: %w", dir, err)
	}

	merged := &Document{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		d, err := LoadFromFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		merged.LoanPolicies = append(merged.LoanPolicies, d.LoanPolicies...)
		merged.RequestPolicies = append(merged.RequestPolicies, d.RequestPolicies...)
		merged.Rules.Rules = append(merged.Rules.Rules, d.Rules.Rules...)
		if merged.Rules.Fallback == (Rule{}) {
			merged.Rules.Fallback = d.Rules.Fallback
		}
	}

	if err := merged.Validate(); err != nil {
		return nil, fmt.Errorf("validate policy directory %s: %w", dir, err)
	}
	return merged, nil
}
