package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/marker/internal/refdata"
)

var importLock bool

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import reference documents",
}

var importUnitCmd = &cobra.Command{
	Use:   "unit <file.yaml>",
	Short: "Import a unit definition from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		unit, err := refdata.LoadUnit(args[0])
		if err != nil {
			return err
		}
		if importLock {
			now := time.Now().UTC()
			unit.LockedAt = &now
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		if err := st.PutUnit(cmd.Context(), unit); err != nil {
			return eris.Wrap(err, "store unit")
		}
		zap.L().Info("imported unit",
			zap.String("id", unit.ID),
			zap.String("code", unit.Code),
			zap.Bool("locked", unit.Locked()))
		cmd.Printf("unit %s (%s) imported\n", unit.Code, unit.ID)
		return nil
	},
}

var importBriefCmd = &cobra.Command{
	Use:   "brief <file.yaml>",
	Short: "Import an assignment brief from YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		brief, err := refdata.LoadBrief(args[0])
		if err != nil {
			return err
		}
		if importLock {
			now := time.Now().UTC()
			brief.LockedAt = &now
		}

		st, err := initStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(cmd.Context()); err != nil {
			return err
		}

		if err := st.PutBrief(cmd.Context(), brief); err != nil {
			return eris.Wrap(err, "store brief")
		}
		zap.L().Info("imported brief",
			zap.String("id", brief.ID),
			zap.String("assignment_code", brief.AssignmentCode),
			zap.Bool("locked", brief.Locked()))
		cmd.Printf("brief %s (%s) imported\n", brief.AssignmentCode, brief.ID)
		return nil
	},
}

func init() {
	importCmd.PersistentFlags().BoolVar(&importLock, "lock", false, "lock the document on import")
	importCmd.AddCommand(importUnitCmd)
	importCmd.AddCommand(importBriefCmd)
	rootCmd.AddCommand(importCmd)
}
