package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Garbage-collection operations",
}

var gcRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an orphaned-resource sweep and exit",
	Long: `run opens the store, warm-loads every collection (which runs the
same orphaned-resource sweep Init always performs), and exits. It's the
same GC pass a running engine does on startup, exposed standalone for
operators who want to reclaim space without restarting the service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		fmt.Println("orphan sweep complete")
		return nil
	},
}

func init() {
	gcCmd.AddCommand(gcRunCmd)
}
