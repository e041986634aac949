// Package export writes grade sheets for external use.
package export

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/marker/internal/model"
	"github.com/sells-group/marker/internal/store"
)

// Row pairs a submission with its most recent assessment, if any.
type Row struct {
	Submission model.Submission
	Assessment *model.Assessment
}

// CollectRows loads every submission for an assignment together with its
// latest assessment. Submissions without an assessment appear with a nil
// Assessment so the sheet shows ungraded work too.
func CollectRows(ctx context.Context, st store.Store, assignmentID string) ([]Row, error) {
	subs, err := st.ListSubmissions(ctx, store.SubmissionFilter{
		AssignmentID: assignmentID,
		Limit:        1000,
	})
	if err != nil {
		return nil, eris.Wrap(err, "export: list submissions")
	}

	rows := make([]Row, 0, len(subs))
	for _, sub := range subs {
		row := Row{Submission: sub}
		assessments, err := st.ListAssessments(ctx, sub.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "export: list assessments for %s", sub.ID)
		}
		if len(assessments) > 0 {
			row.Assessment = &assessments[0]
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// WriteGradeSheet writes rows to an XLSX workbook at path. One sheet,
// one row per submission, with grade, confidence and audit columns.
func WriteGradeSheet(path string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Grades")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Submission ID", "Student ID", "Student Name", "Assignment",
		"Status", "Grade", "Confidence", "Confidence Capped",
		"Compliance Gaps", "Model", "Graded At",
	} {
		header.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Submission.ID)
		row.AddCell().SetString(r.Submission.StudentID)
		row.AddCell().SetString(r.Submission.StudentName)
		row.AddCell().SetString(r.Submission.AssignmentID)
		row.AddCell().SetString(string(r.Submission.Status))

		if r.Assessment == nil {
			for i := 0; i < 6; i++ {
				row.AddCell().SetString("")
			}
			continue
		}

		a := r.Assessment
		row.AddCell().SetString(string(a.Grade))
		row.AddCell().SetString(fmt.Sprintf("%.2f", a.Result.Confidence.Final))
		row.AddCell().SetBool(a.Result.Confidence.WasCapped)
		row.AddCell().SetInt(a.Result.Compliance.MissingCount)
		row.AddCell().SetString(a.Result.Model)
		row.AddCell().SetString(a.CreatedAt.Format("2006-01-02 15:04"))
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}
