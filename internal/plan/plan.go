// Package plan runs a YAML-described list of adjustments against one workbook.
package plan

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/klytics/xladjust/internal/grid"
)

// Plan is a named list of adjustments applied to one workbook and saved once.
type Plan struct {
	Name        string       `yaml:"name" json:"name"`
	Workbook    string       `yaml:"workbook,omitempty" json:"workbook,omitempty"`
	Adjustments []Adjustment `yaml:"adjustments" json:"adjustments"`
}

// Adjustment is one total/exclude pairing on one sheet. Empty optional
// fields fall back to the executor's defaults.
type Adjustment struct {
	ID             string `yaml:"id" json:"id"`
	Sheet          string `yaml:"sheet" json:"sheet"`
	Total          string `yaml:"total" json:"total"`
	Exclude        string `yaml:"exclude" json:"exclude"`
	Label          string `yaml:"label,omitempty" json:"label,omitempty"`
	LabelColumn    string `yaml:"label_column,omitempty" json:"labelColumn,omitempty"`
	AnchorExcludes *bool  `yaml:"anchor_excludes,omitempty" json:"anchorExcludes,omitempty"`
}

// Load reads and parses a plan YAML file.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("plan file not found: %s — check that the path is correct", path)
		}
		return nil, fmt.Errorf("could not read plan file %s: %w", path, err)
	}

	return Parse(data)
}

// WorkbookPath returns the workbook named by the plan, resolved against the
// directory of planFile when relative. It is empty when the plan names none.
func (p *Plan) WorkbookPath(planFile string) string {
	if p.Workbook == "" || filepath.IsAbs(p.Workbook) {
		return p.Workbook
	}
	return filepath.Join(filepath.Dir(planFile), p.Workbook)
}

// Parse parses a plan from YAML bytes.
func Parse(data []byte) (*Plan, error) {
	var p Plan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("invalid plan YAML: %w", err)
	}

	if err := validate(&p); err != nil {
		return nil, err
	}

	return &p, nil
}

func validate(p *Plan) error {
	if p.Name == "" {
		return fmt.Errorf("plan is missing a 'name' field")
	}

	if len(p.Adjustments) == 0 {
		return fmt.Errorf("plan %q has no adjustments defined", p.Name)
	}

	seen := make(map[string]bool)
	for i := range p.Adjustments {
		a := &p.Adjustments[i]
		if a.ID == "" {
			a.ID = fmt.Sprintf("step-%d", i+1)
		}
		if seen[a.ID] {
			return fmt.Errorf("duplicate adjustment ID %q — each adjustment must have a unique ID", a.ID)
		}
		seen[a.ID] = true

		switch {
		case a.Sheet == "":
			return fmt.Errorf("adjustment %q is missing a 'sheet' field", a.ID)
		case a.Total == "":
			return fmt.Errorf("adjustment %q is missing a 'total' field", a.ID)
		case a.Exclude == "":
			return fmt.Errorf("adjustment %q is missing an 'exclude' field", a.ID)
		case a.Total == a.Exclude:
			return fmt.Errorf("adjustment %q uses %q as both total and exclude label", a.ID, a.Total)
		}

		if a.LabelColumn != "" {
			if _, err := grid.ParseColumn(a.LabelColumn); err != nil {
				return fmt.Errorf("adjustment %q: %w", a.ID, err)
			}
		}
	}

	return nil
}
