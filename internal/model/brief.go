package model

import "time"

// GradeBand classifies a criterion by the grade it contributes toward.
type GradeBand string

const (
	GradeBandPass        GradeBand = "PASS"
	GradeBandMerit       GradeBand = "MERIT"
	GradeBandDistinction GradeBand = "DISTINCTION"
)

// AssessmentCriterion is a single gradeable criterion within a unit.
// Code follows the P/M/D + number convention (P1, M2, D1).
type AssessmentCriterion struct {
	Code            string    `json:"code" yaml:"code"`
	Band            GradeBand `json:"band" yaml:"band"`
	LearningOutcome string    `json:"learning_outcome" yaml:"learning_outcome"`
	Description     string    `json:"description" yaml:"description"`
	Excluded        bool      `json:"excluded,omitempty" yaml:"excluded,omitempty"`
}

// LearningOutcome groups criteria under one LO code.
type LearningOutcome struct {
	Code     string                `json:"code" yaml:"code"`
	Title    string                `json:"title" yaml:"title"`
	Criteria []AssessmentCriterion `json:"criteria" yaml:"criteria"`
}

// Unit is the criteria universe for one taught unit. It must be locked
// before grading is permitted.
type Unit struct {
	ID               string            `json:"id" yaml:"id"`
	Code             string            `json:"code" yaml:"code"`
	Title            string            `json:"title" yaml:"title"`
	LearningOutcomes []LearningOutcome `json:"learning_outcomes" yaml:"learning_outcomes"`
	LockedAt         *time.Time        `json:"locked_at,omitempty" yaml:"locked_at,omitempty"`
}

// Locked reports whether the unit's criteria are frozen for grading.
func (u *Unit) Locked() bool {
	return u != nil && u.LockedAt != nil
}

// Criteria flattens the unit's learning outcomes into a single criterion
// list, skipping criteria excluded by audited edits. The LearningOutcome
// field on each criterion is backfilled from its parent LO when empty.
func (u *Unit) Criteria() []AssessmentCriterion {
	var out []AssessmentCriterion
	for _, lo := range u.LearningOutcomes {
		for _, c := range lo.Criteria {
			if c.Excluded {
				continue
			}
			if c.LearningOutcome == "" {
				c.LearningOutcome = lo.Code
			}
			out = append(out, c)
		}
	}
	return out
}

// TaskPart is one keyed part of a brief task. Key is a section letter
// ("a", "b") or a roman numeral ("i", "ii") nested under the most recent
// letter; an empty key is free text belonging to the task itself.
type TaskPart struct {
	Key  string `json:"key" yaml:"key"`
	Text string `json:"text" yaml:"text"`
}

// BriefTask is one numbered task from an assignment brief.
type BriefTask struct {
	Number int        `json:"number" yaml:"number"`
	Title  string     `json:"title" yaml:"title"`
	Parts  []TaskPart `json:"parts" yaml:"parts"`
}

// CriteriaMapping binds a brief to an explicit subset of a unit's criteria.
// When any mapping is present it overrides the full unit criteria set.
type CriteriaMapping struct {
	TaskNumber int      `json:"task_number,omitempty" yaml:"task_number,omitempty"`
	Codes      []string `json:"codes" yaml:"codes"`
}

// AssignmentBrief is a locked reference document binding an assignment
// code to a unit and a structured task tree.
type AssignmentBrief struct {
	ID             string            `json:"id" yaml:"id"`
	AssignmentCode string            `json:"assignment_code" yaml:"assignment_code"`
	UnitID         string            `json:"unit_id" yaml:"unit_id"`
	Tasks          []BriefTask       `json:"tasks" yaml:"tasks"`
	CriteriaMaps   []CriteriaMapping `json:"criteria_maps,omitempty" yaml:"criteria_maps,omitempty"`
	Rubric         string            `json:"rubric,omitempty" yaml:"rubric,omitempty"`
	LockedAt       *time.Time        `json:"locked_at,omitempty" yaml:"locked_at,omitempty"`
}

// Locked reports whether the brief is frozen for grading.
func (b *AssignmentBrief) Locked() bool {
	return b != nil && b.LockedAt != nil
}

// EffectiveCriteria resolves the criteria set a submission is graded
// against: the brief's explicit criteria mappings when present, otherwise
// the unit's full (non-excluded) criteria list.
func EffectiveCriteria(brief *AssignmentBrief, unit *Unit) []AssessmentCriterion {
	all := unit.Criteria()
	if brief == nil || len(brief.CriteriaMaps) == 0 {
		return all
	}

	mapped := make(map[string]bool)
	for _, m := range brief.CriteriaMaps {
		for _, code := range m.Codes {
			mapped[code] = true
		}
	}

	var out []AssessmentCriterion
	for _, c := range all {
		if mapped[c.Code] {
			out = append(out, c)
		}
	}
	return out
}
