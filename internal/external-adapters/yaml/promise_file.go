package yaml

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ochairo/patchverify/internal/domain/entities"
	"github.com/ochairo/patchverify/internal/domain/services"
	"gopkg.in/yaml.v3"
)

var cveID = regexp.MustCompile(`(?i)^CVE-\d{4}-\d{4,7}$`)

// yamlPromiseFile is a hand-written list of fix claims for one release
type yamlPromiseFile struct {
	Package  string        `yaml:"package"`
	Version  string        `yaml:"version"`
	Promises []yamlPromise `yaml:"promises"`
}

type yamlPromise struct {
	Type        string `yaml:"type"`
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	BugClass    string `yaml:"bug_class"`
}

// PromiseFile is a promise source backed by a YAML file
type PromiseFile struct {
	Package  string
	Version  string
	promises []entities.Promise
}

// LoadPromiseFile reads and validates a promise file
func LoadPromiseFile(filePath string) (*PromiseFile, error) {
	//nolint:gosec // G304: filePath is the --promises flag value
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}
	return ParsePromiseFile(data)
}

// ParsePromiseFile parses YAML bytes into a promise file.
// A missing type is inferred from the id; a missing bug_class from the description.
func ParsePromiseFile(data []byte) (*PromiseFile, error) {
	var doc yamlPromiseFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	pf := &PromiseFile{Package: doc.Package, Version: doc.Version}
	bugFixes := 0
	for i, yp := range doc.Promises {
		p, err := convertPromise(yp)
		if err != nil {
			return nil, fmt.Errorf("promise %d: %w", i+1, err)
		}
		if p.Type == entities.PromiseBugFix && p.ID == "" {
			bugFixes++
			p.ID = fmt.Sprintf("BUG-%03d", bugFixes)
		}
		pf.promises = append(pf.promises, p)
	}
	return pf, nil
}

func convertPromise(yp yamlPromise) (entities.Promise, error) {
	id := strings.TrimSpace(yp.ID)
	desc := strings.TrimSpace(yp.Description)

	ptype := entities.PromiseType(strings.ToLower(strings.TrimSpace(yp.Type)))
	if ptype == "" {
		ptype = entities.PromiseBugFix
		if cveID.MatchString(id) {
			ptype = entities.PromiseCVE
		}
	}

	switch ptype {
	case entities.PromiseCVE:
		if !cveID.MatchString(id) {
			return entities.Promise{}, fmt.Errorf("cve promise needs a CVE id, got %q", yp.ID)
		}
		id = strings.ToUpper(id)
	case entities.PromiseBugFix:
		if desc == "" {
			return entities.Promise{}, fmt.Errorf("bug_fix promise needs a description")
		}
	default:
		return entities.Promise{}, fmt.Errorf("unknown promise type %q", yp.Type)
	}

	class := entities.BugClass(strings.ToLower(strings.TrimSpace(yp.BugClass)))
	if class == "" {
		class = services.DetectBugClass(desc)
	}

	return entities.Promise{
		Type:        ptype,
		ID:          id,
		Description: desc,
		BugClass:    class,
		Source:      entities.PromiseSourceFile,
	}, nil
}

// Promises returns a copy of the parsed promises
func (f *PromiseFile) Promises() []entities.Promise {
	out := make([]entities.Promise, len(f.promises))
	copy(out, f.promises)
	return out
}

// CollectPromises returns the file's promises. A file naming a different
// package or version is rejected so it cannot be applied to the wrong scan.
func (f *PromiseFile) CollectPromises(_ context.Context, app, version string) ([]entities.Promise, error) {
	if f.Package != "" && !strings.EqualFold(f.Package, app) {
		return nil, fmt.Errorf("promise file is for %s, not %s", f.Package, app)
	}
	if f.Version != "" && f.Version != version {
		return nil, fmt.Errorf("promise file is for %s %s, not %s", f.Package, f.Version, version)
	}
	return f.Promises(), nil
}
