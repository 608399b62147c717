package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/roach88/qmailtrail/internal/engine"
)

// Backend names accepted in scenario files.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// Scenario is one log replay with its expected outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Verbose selects the verbose result suffix.
	Verbose bool `yaml:"verbose,omitempty"`

	// Timezone is an IANA zone name. Empty means UTC.
	Timezone string `yaml:"timezone,omitempty"`

	// Backend selects the store. Empty means memory.
	Backend string `yaml:"backend,omitempty"`

	// Lines is the log, in order.
	Lines []string `yaml:"lines"`

	// Expect is the outcome to check.
	Expect Expect `yaml:"expect"`
}

// Expect lists the outcome of a scenario. Omitted lists mean none expected.
type Expect struct {
	// Results are the emitted result lines, in order.
	Results []string `yaml:"results,omitempty"`

	// Warnings are the warning codes reported, in order.
	Warnings []string `yaml:"warnings,omitempty"`

	// PendingMessages are the message ids still live at the end.
	PendingMessages []string `yaml:"pending_messages,omitempty"`

	// PendingDeliveries are the delivery ids still bound at the end.
	PendingDeliveries []string `yaml:"pending_deliveries,omitempty"`
}

// Location resolves the scenario's time zone.
func (s *Scenario) Location() (*time.Location, error) {
	if s.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(s.Timezone)
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "warning:" vs "warnings:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Lines) == 0 {
		return fmt.Errorf("lines list is required and must be non-empty")
	}

	switch s.Backend {
	case "", BackendMemory, BackendSQLite:
	default:
		return fmt.Errorf("unknown backend %q", s.Backend)
	}

	if _, err := s.Location(); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	for i, code := range s.Expect.Warnings {
		if !knownWarning(code) {
			return fmt.Errorf("expect.warnings[%d]: unknown warning code %q", i, code)
		}
	}

	return nil
}

func knownWarning(code string) bool {
	for _, c := range engine.WarningCodes {
		if string(c) == code {
			return true
		}
	}
	return false
}
