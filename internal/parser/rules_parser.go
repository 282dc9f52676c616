package parser

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/svg-workbench/backend/internal/models"
	"gopkg.in/yaml.v3"
)

// ParseEditRules parses a YAML edit rules file. Fields missing from the file
// keep their zero value.
func ParseEditRules(filePath string) (*models.EditRules, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseEditRulesFromReader(file)
}

// ParseEditRulesFromReader parses rules from an io.Reader.
func ParseEditRulesFromReader(r io.Reader) (*models.EditRules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rules models.EditRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, err
	}
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid edit rules: %w", err)
	}

	return &rules, nil
}

// LoadEditRules reads filePath, writing the default rules there first if the
// file does not exist yet.
func LoadEditRules(filePath string) (*models.EditRules, error) {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		rules := models.DefaultEditRules()
		if err := SaveEditRules(filePath, rules); err != nil {
			return nil, err
		}
		return rules, nil
	}
	return ParseEditRules(filePath)
}

// SaveEditRules writes rules as YAML.
func SaveEditRules(filePath string, rules *models.EditRules) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid edit rules: %w", err)
	}
	data, err := yaml.Marshal(rules)
	if err != nil {
		return fmt.Errorf("failed to marshal edit rules: %w", err)
	}
	return os.WriteFile(filePath, data, 0644)
}

// RulesFile holds the active edit rules and the file they persist to.
type RulesFile struct {
	mu    sync.RWMutex
	path  string
	rules models.EditRules
}

// OpenRulesFile loads the rules at path, creating the file with defaults if
// needed. An empty path keeps the defaults in memory only.
func OpenRulesFile(path string) (*RulesFile, error) {
	if path == "" {
		return &RulesFile{rules: *models.DefaultEditRules()}, nil
	}
	rules, err := LoadEditRules(path)
	if err != nil {
		return nil, err
	}
	return &RulesFile{path: path, rules: *rules}, nil
}

// Rules returns a copy of the active rules.
func (f *RulesFile) Rules() models.EditRules {
	f.mu.RLock()
	defer f.mu.RUnlock()
	copied := f.rules
	copied.AllowedUnits = append([]string(nil), f.rules.AllowedUnits...)
	copied.ProtectedAttributes = append([]string(nil), f.rules.ProtectedAttributes...)
	return copied
}

// Replace validates rules, writes them to disk and makes them active.
func (f *RulesFile) Replace(rules models.EditRules) error {
	if err := rules.Validate(); err != nil {
		return fmt.Errorf("invalid edit rules: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path != "" {
		if err := SaveEditRules(f.path, &rules); err != nil {
			return err
		}
	}
	f.rules = rules
	return nil
}
