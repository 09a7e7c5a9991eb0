// Package yaml provides YAML-based probe catalog and promise file parsing.
package yaml

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"gopkg.in/yaml.v3"
)

//go:embed probes.yaml
var builtinCatalog []byte

// yamlCatalog represents the raw YAML structure
type yamlCatalog struct {
	Probes []yamlProbe `yaml:"probes"`
}

type yamlProbe struct {
	BugClass    string        `yaml:"bug_class"`
	Description string        `yaml:"description"`
	EntryPoints []string      `yaml:"entry_points"`
	Outcomes    []yamlOutcome `yaml:"outcomes"`
	Python      string        `yaml:"python"`
	Node        string        `yaml:"node"`
}

type yamlOutcome struct {
	Token   string `yaml:"token"`
	Passed  *bool  `yaml:"passed"`
	Message string `yaml:"message"`
}

// CatalogParser parses YAML probe catalogs
type CatalogParser struct{}

// NewCatalogParser creates a new YAML parser
func NewCatalogParser() *CatalogParser {
	return &CatalogParser{}
}

// ParseFile parses a YAML catalog file into probe specs
func (p *CatalogParser) ParseFile(filePath string) ([]entities.ProbeSpec, error) {
	//nolint:gosec // G304: filePath is the user-configured catalog override
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into probe specs
func (p *CatalogParser) Parse(data []byte) ([]entities.ProbeSpec, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	specs := make([]entities.ProbeSpec, 0, len(doc.Probes))
	for i, yp := range doc.Probes {
		spec, err := convertProbe(yp)
		if err != nil {
			return nil, fmt.Errorf("probe %d: %w", i+1, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func convertProbe(yp yamlProbe) (entities.ProbeSpec, error) {
	if yp.BugClass == "" {
		return entities.ProbeSpec{}, fmt.Errorf("probe must have a bug_class")
	}
	if yp.Python == "" && yp.Node == "" {
		return entities.ProbeSpec{}, fmt.Errorf("probe %s has neither a python nor a node script", yp.BugClass)
	}
	if len(yp.Outcomes) == 0 {
		return entities.ProbeSpec{}, fmt.Errorf("probe %s declares no outcomes", yp.BugClass)
	}

	rules := make([]entities.OutcomeRule, 0, len(yp.Outcomes))
	for _, o := range yp.Outcomes {
		token := strings.ToUpper(strings.TrimSpace(o.Token))
		if token == "" {
			return entities.ProbeSpec{}, fmt.Errorf("probe %s has an outcome without a token", yp.BugClass)
		}
		rule := entities.OutcomeRule{Outcome: entities.ProbeOutcome(token), Message: o.Message}
		if o.Passed != nil {
			rule.Passed = entities.BoolPtr(*o.Passed)
		}
		rules = append(rules, rule)
	}

	return entities.ProbeSpec{
		BugClass:     entities.BugClass(yp.BugClass),
		Description:  yp.Description,
		EntryPoints:  yp.EntryPoints,
		Outcomes:     rules,
		PythonScript: yp.Python,
		NodeScript:   yp.Node,
	}, nil
}

// LoadCatalog builds the probe catalog from the built-in probes.
// When overridePath is set, its specs replace built-in ones by bug class
// and new bug classes are added.
func LoadCatalog(overridePath string) (*entities.ProbeCatalog, error) {
	parser := NewCatalogParser()
	specs, err := parser.Parse(builtinCatalog)
	if err != nil {
		return nil, fmt.Errorf("built-in probe catalog: %w", err)
	}

	if overridePath != "" {
		overrides, err := parser.ParseFile(overridePath)
		if err != nil {
			return nil, err
		}
		specs = mergeSpecs(specs, overrides)
	}

	return entities.NewProbeCatalog(specs)
}

func mergeSpecs(base, overrides []entities.ProbeSpec) []entities.ProbeSpec {
	index := make(map[entities.BugClass]int, len(base))
	for i, s := range base {
		index[s.BugClass] = i
	}
	for _, o := range overrides {
		if i, ok := index[o.BugClass]; ok {
			base[i] = o
			continue
		}
		index[o.BugClass] = len(base)
		base = append(base, o)
	}
	return base
}
