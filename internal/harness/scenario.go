package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/poe/internal/digest"
	"github.com/roach88/poe/internal/ir"
)

// Scenario defines a conformance test scenario.
// A scenario drives a fresh engine through a sequence of calls and asserts
// on the resulting outcomes, events and final claims.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxBytesInHash bounds fingerprints. Defaults to 64.
	MaxBytesInHash uint32 `yaml:"max_bytes_in_hash,omitempty"`

	// BlockWeightLimit is the per-block weight budget. Defaults to the
	// engine default.
	BlockWeightLimit uint64 `yaml:"block_weight_limit,omitempty"`

	// Batch is an optional fixed batch token for deterministic journals.
	Batch string `yaml:"batch,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and final state.
	// Supported types: claim, absent, claim_count, event_count, event_order,
	// outcome_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one call, or a block boundary when Op is "advance".
type Step struct {
	// Op is create, transfer, revoke or advance.
	Op string `yaml:"op"`

	Caller   string `yaml:"caller,omitempty"`
	Receiver string `yaml:"receiver,omitempty"`

	// Fingerprint is 0x-prefixed hex. Text is an alternative: the
	// fingerprint becomes the digest of Text under Algorithm.
	Fingerprint string `yaml:"fingerprint,omitempty"`
	Text        string `yaml:"text,omitempty"`
	Algorithm   string `yaml:"algorithm,omitempty"`

	// Expect is the expected outcome: "Ok", a registry error code such as
	// "NotProofOwner", or a runtime error code such as "WEIGHT_EXCEEDED".
	// If empty, the outcome is not checked.
	Expect string `yaml:"expect,omitempty"`
}

// OpAdvance seals the current block.
const OpAdvance = "advance"

// Assertion validates trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "claim": fingerprint is claimed by Owner (at RegisteredAt, if set)
	// - "absent": fingerprint is not claimed
	// - "claim_count": exactly Count claims are live
	// - "event_count": Count events of Kind (all kinds if empty) were deposited
	// - "event_order": event kinds appear in this order
	// - "outcome_count": Count calls ended with Outcome
	Type string `yaml:"type"`

	Fingerprint string `yaml:"fingerprint,omitempty"`
	Text        string `yaml:"text,omitempty"`
	Algorithm   string `yaml:"algorithm,omitempty"`

	Owner        string  `yaml:"owner,omitempty"`
	RegisteredAt *uint64 `yaml:"registered_at,omitempty"`

	Kind    string   `yaml:"kind,omitempty"`
	Kinds   []string `yaml:"kinds,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Count   int      `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertClaim        = "claim"
	AssertAbsent       = "absent"
	AssertClaimCount   = "claim_count"
	AssertEventCount   = "event_count"
	AssertEventOrder   = "event_order"
	AssertOutcomeCount = "outcome_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
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

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(index int, st *Step) error {
	if st.Op == OpAdvance {
		if st.Caller != "" || st.Fingerprint != "" || st.Text != "" || st.Expect != "" {
			return fmt.Errorf("steps[%d]: advance takes no arguments", index)
		}
		return nil
	}
	if !ir.ValidOps[ir.Op(st.Op)] {
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	if st.Caller == "" {
		return fmt.Errorf("steps[%d]: caller is required", index)
	}
	if st.Op == string(ir.OpTransfer) && st.Receiver == "" {
		return fmt.Errorf("steps[%d]: receiver is required for transfer", index)
	}
	if _, err := resolveFingerprint(st.Fingerprint, st.Text, st.Algorithm); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertClaim:
		if a.Owner == "" {
			return fmt.Errorf("assertions[%d]: owner is required for claim", index)
		}
		if _, err := resolveFingerprint(a.Fingerprint, a.Text, a.Algorithm); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertAbsent:
		if _, err := resolveFingerprint(a.Fingerprint, a.Text, a.Algorithm); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	case AssertClaimCount, AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertEventOrder:
		if len(a.Kinds) == 0 {
			return fmt.Errorf("assertions[%d]: kinds list is required for event_order", index)
		}
	case AssertOutcomeCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for outcome_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for outcome_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// resolveFingerprint turns a hex or text fingerprint into bytes.
// Exactly one of hex and text must be set; "0x" is the empty fingerprint.
func resolveFingerprint(hex, text, algorithm string) ([]byte, error) {
	switch {
	case hex != "" && text != "":
		return nil, fmt.Errorf("fingerprint and text are mutually exclusive")
	case hex != "":
		if algorithm != "" {
			return nil, fmt.Errorf("algorithm only applies to text")
		}
		return ir.ParseFingerprint(hex)
	case text != "":
		algo, err := digest.ParseAlgorithm(algorithm)
		if err != nil {
			return nil, err
		}
		d, err := digest.Sum([]byte(text), algo)
		if err != nil {
			return nil, err
		}
		return d.Sum, nil
	default:
		return nil, fmt.Errorf("fingerprint or text is required")
	}
}
