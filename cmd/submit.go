package main

import (
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marker/internal/model"
)

var (
	submitStudentID   string
	submitStudentName string
	submitAssignment  string
	submitConfidence  float64
)

var submitCmd = &cobra.Command{
	Use:   "submit <extracted-text-file>",
	Short: "Register a submission from already-extracted text",
	Long:  "Creates a submission with the file contents as body text and records a completed extraction run, leaving it in EXTRACTED and ready to grade.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if submitStudentID == "" || submitAssignment == "" {
			return eris.New("--student and --assignment are required")
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrapf(err, "read %s", args[0])
		}
		body := strings.TrimSpace(string(data))

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		sub := &model.Submission{
			ID:           uuid.NewString(),
			StudentID:    submitStudentID,
			StudentName:  submitStudentName,
			AssignmentID: submitAssignment,
			Status:       model.SubmissionStatusUploaded,
			BodyText:     body,
		}
		if err := st.CreateSubmission(cmd.Context(), sub); err != nil {
			return err
		}

		run := &model.ExtractionRun{
			ID:           uuid.NewString(),
			SubmissionID: sub.ID,
			Status:       model.ExtractionStatusComplete,
			Confidence:   submitConfidence,
			Mode:         model.ExtractionModeNormal,
		}
		if err := st.PutExtractionRun(cmd.Context(), run); err != nil {
			return err
		}
		if err := st.SetSubmissionStatus(cmd.Context(), sub.ID, model.SubmissionStatusExtracted); err != nil {
			return err
		}

		zap.L().Info("registered submission",
			zap.String("submission_id", sub.ID),
			zap.String("student_id", submitStudentID),
			zap.String("assignment", submitAssignment),
			zap.Int("body_chars", len(body)))
		cmd.Printf("submission %s created (EXTRACTED)\n", sub.ID)
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitStudentID, "student", "", "student id")
	submitCmd.Flags().StringVar(&submitStudentName, "name", "", "student display name")
	submitCmd.Flags().StringVar(&submitAssignment, "assignment", "", "assignment code")
	submitCmd.Flags().Float64Var(&submitConfidence, "confidence", 1.0, "extraction confidence to record")
	rootCmd.AddCommand(submitCmd)
}
