// Package refdata loads units and assignment briefs from YAML files and
// validates them before they are stored.
package refdata

import (
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/marker/internal/model"
)

// LoadUnit reads a unit definition from a YAML file.
func LoadUnit(path string) (*model.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: read unit %s", path)
	}

	var wrapper struct {
		Unit model.Unit `yaml:"unit"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "refdata: parse unit %s", path)
	}

	unit := &wrapper.Unit
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	if err := ValidateUnit(unit); err != nil {
		return nil, err
	}
	return unit, nil
}

// LoadBrief reads an assignment brief from a YAML file.
func LoadBrief(path string) (*model.AssignmentBrief, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "refdata: read brief %s", path)
	}

	var wrapper struct {
		Brief model.AssignmentBrief `yaml:"brief"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrapf(err, "refdata: parse brief %s", path)
	}

	brief := &wrapper.Brief
	if brief.ID == "" {
		brief.ID = uuid.NewString()
	}
	if err := ValidateBrief(brief); err != nil {
		return nil, err
	}
	return brief, nil
}

// ValidateUnit checks structural requirements on a unit definition:
// a code, at least one learning outcome, and unique criterion codes.
func ValidateUnit(unit *model.Unit) error {
	if unit.Code == "" {
		return eris.New("refdata: unit code is required")
	}
	if len(unit.LearningOutcomes) == 0 {
		return eris.Errorf("refdata: unit %s has no learning outcomes", unit.Code)
	}

	seen := make(map[string]bool)
	for _, lo := range unit.LearningOutcomes {
		if lo.Code == "" {
			return eris.Errorf("refdata: unit %s has a learning outcome without a code", unit.Code)
		}
		for _, c := range lo.Criteria {
			if c.Code == "" {
				return eris.Errorf("refdata: unit %s LO %s has a criterion without a code", unit.Code, lo.Code)
			}
			if seen[c.Code] {
				return eris.Errorf("refdata: unit %s has duplicate criterion %s", unit.Code, c.Code)
			}
			seen[c.Code] = true
			switch c.Band {
			case model.GradeBandPass, model.GradeBandMerit, model.GradeBandDistinction:
			default:
				return eris.Errorf("refdata: criterion %s has invalid band %q", c.Code, c.Band)
			}
		}
	}
	return nil
}

// ValidateBrief checks structural requirements on an assignment brief.
// Criteria mappings are checked against the unit separately, at grading
// time, because the unit may not be loaded yet when the brief is imported.
func ValidateBrief(brief *model.AssignmentBrief) error {
	if brief.AssignmentCode == "" {
		return eris.New("refdata: brief assignment_code is required")
	}
	if brief.UnitID == "" {
		return eris.Errorf("refdata: brief %s has no unit_id", brief.AssignmentCode)
	}
	if len(brief.Tasks) == 0 {
		return eris.Errorf("refdata: brief %s has no tasks", brief.AssignmentCode)
	}

	seen := make(map[int]bool)
	for _, task := range brief.Tasks {
		if task.Number <= 0 {
			return eris.Errorf("refdata: brief %s has a task without a positive number", brief.AssignmentCode)
		}
		if seen[task.Number] {
			return eris.Errorf("refdata: brief %s has duplicate task %d", brief.AssignmentCode, task.Number)
		}
		seen[task.Number] = true
	}

	for _, m := range brief.CriteriaMaps {
		if len(m.Codes) == 0 {
			return eris.Errorf("refdata: brief %s has an empty criteria mapping", brief.AssignmentCode)
		}
		if m.TaskNumber != 0 && !seen[m.TaskNumber] {
			return eris.Errorf("refdata: brief %s maps criteria to unknown task %d", brief.AssignmentCode, m.TaskNumber)
		}
	}
	return nil
}
