package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/portwire/internal/graph"
	"github.com/roach88/portwire/internal/rules"
)

// Scenario defines a test scenario: rules, a starting graph and the
// topology changes to replay against it.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules is an inline rule document (connect/disconnect sections).
	Rules yaml.Node `yaml:"rules,omitempty"`

	// RulesFile is a rule file path, relative to the scenario file.
	// Exactly one of Rules and RulesFile must be set.
	RulesFile string `yaml:"rules_file,omitempty"`

	// Options selects the optional command filters.
	Options Options `yaml:"options,omitempty"`

	// Ports exist before the startup pass.
	Ports []PortSpec `yaml:"ports,omitempty"`

	// Steps are applied in order after startup.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and graph.
	Assertions []Assertion `yaml:"assertions"`
}

// Options mirrors the daemon's skip_self and dedupe settings.
type Options struct {
	SkipSelf bool `yaml:"skip_self"`
	Dedupe   bool `yaml:"dedupe"`
}

// PortSpec describes a port to register.
type PortSpec struct {
	Name string `yaml:"name"`
	// Type is "audio" (default), "midi" or a full JACK type string.
	Type  string   `yaml:"type,omitempty"`
	Flags []string `yaml:"flags,omitempty"`
}

// PortType resolves the short type names.
func (p PortSpec) PortType() string {
	switch p.Type {
	case "", "audio":
		return graph.TypeAudio
	case "midi":
		return graph.TypeMIDI
	default:
		return p.Type
	}
}

// PortFlags parses the flag names.
func (p PortSpec) PortFlags() graph.PortFlags {
	var f graph.PortFlags
	for _, name := range p.Flags {
		f |= graph.ParseFlags(name)
	}
	return f
}

// Step is one topology change. Exactly one field is set.
type Step struct {
	Register   *PortSpec `yaml:"register,omitempty"`
	Unregister string    `yaml:"unregister,omitempty"`
	Link       *LinkSpec `yaml:"link,omitempty"`
	Unlink     *LinkSpec `yaml:"unlink,omitempty"`
}

// LinkSpec names two ports.
type LinkSpec struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Assertion validates the trace or the final graph.
type Assertion struct {
	// Type specifies the assertion type:
	// - "connected" / "not_connected": From and To
	// - "trace_count": Count, optionally narrowed by Action and Result
	// - "trace_order": Commands
	// - "journal_count": Count, optionally narrowed by Result
	Type string `yaml:"type"`

	From string `yaml:"from,omitempty"`
	To   string `yaml:"to,omitempty"`

	// Action is "connect" or "disconnect".
	Action string `yaml:"action,omitempty"`

	// Result is "ok" or "error".
	Result string `yaml:"result,omitempty"`

	// Count is the expected number of matches.
	Count int `yaml:"count,omitempty"`

	// Commands is the expected dispatch order, e.g. "connect a:out -> b:in".
	Commands []string `yaml:"commands,omitempty"`
}

// Assertion type constants.
const (
	AssertConnected    = "connected"
	AssertNotConnected = "not_connected"
	AssertTraceCount   = "trace_count"
	AssertTraceOrder   = "trace_order"
	AssertJournalCount = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// rules_file is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.RulesFile != "" && !filepath.IsAbs(scenario.RulesFile) {
		scenario.RulesFile = filepath.Join(filepath.Dir(path), scenario.RulesFile)
	}

	// Validate required fields
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// RuleSet compiles the scenario's rules.
func (s *Scenario) RuleSet() (*rules.RuleSet, error) {
	if s.RulesFile != "" {
		return rules.Load(s.RulesFile)
	}
	doc, err := rules.ParseNode(&s.Rules)
	if err != nil {
		return nil, err
	}
	return rules.Build(doc)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	hasInline := s.Rules.Kind != 0
	if hasInline == (s.RulesFile != "") {
		return fmt.Errorf("exactly one of rules and rules_file is required")
	}

	if s.RulesFile != "" {
		if _, err := os.Stat(s.RulesFile); os.IsNotExist(err) {
			return fmt.Errorf("rules file not found: %s", s.RulesFile)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	// Validate initial ports
	for i, p := range s.Ports {
		if p.Name == "" {
			return fmt.Errorf("ports[%d]: name is required", i)
		}
	}

	// Validate steps
	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	// Validate assertions
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, s *Step) error {
	set := 0
	if s.Register != nil {
		set++
		if s.Register.Name == "" {
			return fmt.Errorf("steps[%d]: register needs a name", index)
		}
	}
	if s.Unregister != "" {
		set++
	}
	for _, l := range []*LinkSpec{s.Link, s.Unlink} {
		if l == nil {
			continue
		}
		set++
		if l.From == "" || l.To == "" {
			return fmt.Errorf("steps[%d]: link needs from and to", index)
		}
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of register, unregister, link, unlink is required", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertConnected, AssertNotConnected:
		if a.From == "" || a.To == "" {
			return fmt.Errorf("assertions[%d]: from and to are required for %s", index, a.Type)
		}
	case AssertTraceCount, AssertJournalCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTraceOrder:
		if len(a.Commands) == 0 {
			return fmt.Errorf("assertions[%d]: commands list is required for trace_order", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	switch a.Action {
	case "", "connect", "disconnect":
	default:
		return fmt.Errorf("assertions[%d]: action must be connect or disconnect", index)
	}
	switch a.Result {
	case "", "ok", "error":
	default:
		return fmt.Errorf("assertions[%d]: result must be ok or error", index)
	}

	return nil
}
