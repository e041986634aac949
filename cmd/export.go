package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marker/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <assignment-code>",
	Short: "Export a grade sheet workbook for an assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		rows, err := export.CollectRows(cmd.Context(), st, args[0])
		if err != nil {
			return err
		}
		if err := export.WriteGradeSheet(exportOut, rows); err != nil {
			return err
		}

		zap.L().Info("exported grade sheet",
			zap.String("assignment", args[0]),
			zap.Int("rows", len(rows)),
			zap.String("path", exportOut))
		cmd.Printf("wrote %d rows to %s\n", len(rows), exportOut)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "grades.xlsx", "output workbook path")
	rootCmd.AddCommand(exportCmd)
}
