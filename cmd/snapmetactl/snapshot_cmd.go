package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cuemby/snapmeta/pkg/snapshot"
	"github.com/cuemby/snapmeta/pkg/types"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect collection snapshots",
}

var snapshotShowCmd = &cobra.Command{
	Use:   "show COLLECTION_ID [COMMIT_ID]",
	Short: "Show a snapshot closure; COMMIT_ID defaults to the active commit",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cid, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}
		var commitID int64
		if len(args) == 2 {
			commitID, err = strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid commit id %q: %w", args[1], err)
			}
		}

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		scoped, err := reg.GetSnapshot(types.ID(cid), types.ID(commitID))
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		defer scoped.Release()

		printSnapshot(scoped.Snapshot())
		return nil
	},
}

func printSnapshot(snap *snapshot.Snapshot) {
	fmt.Printf("collection: %s (id=%d)\n", snap.Collection.GetName(), snap.CollectionID)
	fmt.Printf("commit: %d state=%s lsn=%d size=%d rows=%d\n",
		snap.Commit.GetID(), snap.Commit.GetState(), snap.Commit.GetLSN(), snap.Commit.GetSize(), snap.Commit.GetRowCount())
	fmt.Printf("schema: %s (commit=%d, %d fields)\n", snap.Schema.GetName(), snap.SchemaCommit.GetID(), len(snap.Fields))

	if len(snap.Partitions) == 0 {
		fmt.Println("partitions: none")
		return
	}
	fmt.Printf("partitions (%d):\n", len(snap.Partitions))
	for id, p := range snap.Partitions {
		segCount := 0
		for _, s := range snap.Segments {
			if s.GetPartitionID() == id {
				segCount++
			}
		}
		fmt.Printf("  %d %s segments=%d\n", id, p.GetName(), segCount)
	}
}

func init() {
	snapshotCmd.AddCommand(snapshotShowCmd)
}
