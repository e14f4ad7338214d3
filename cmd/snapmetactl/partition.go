package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/types"
)

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Manage partitions within a collection",
}

var partitionCreateCmd = &cobra.Command{
	Use:   "create COLLECTION_ID NAME",
	Short: "Create a new partition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}
		name := args[1]

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		holder, err := reg.Holder(types.ID(cid))
		if err != nil {
			return err
		}
		base, err := reg.BaseSnapshot(types.ID(cid))
		if err != nil {
			return err
		}

		requestID := uuid.NewString()
		op := snapshot.NewCreatePartitionOperation(reg.Store(), holder, base, name, requestID)
		if err := reg.Submit(types.ID(cid), op); err != nil {
			return fmt.Errorf("create partition: %w", err)
		}

		scoped, err := op.GetSnapshot()
		if err != nil {
			return err
		}
		defer scoped.Release()
		fmt.Printf("partition %q created, collection now at commit %d\n", name, scoped.Snapshot().ID)
		return nil
	},
}

var partitionDropCmd = &cobra.Command{
	Use:   "drop COLLECTION_ID PARTITION_ID",
	Short: "Drop a partition",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}
		pid, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid partition id %q: %w", args[1], err)
		}

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		if err := reg.DropPartition(types.ID(cid), types.ID(pid), uuid.NewString()); err != nil {
			return fmt.Errorf("drop partition: %w", err)
		}
		fmt.Printf("partition %d dropped\n", pid)
		return nil
	},
}

func init() {
	partitionCmd.AddCommand(partitionCreateCmd)
	partitionCmd.AddCommand(partitionDropCmd)
}
