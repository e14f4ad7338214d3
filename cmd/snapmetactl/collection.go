package main

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/snapmeta/pkg/types"
)

var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage collections",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		paramsRaw, _ := cmd.Flags().GetString("params")

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		scoped, err := reg.CreateCollection(name, []byte(paramsRaw), uuid.NewString())
		if err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
		defer scoped.Release()

		snap := scoped.Snapshot()
		fmt.Printf("collection created: %s\n", name)
		fmt.Printf("  id: %d\n", snap.CollectionID)
		fmt.Printf("  commit: %d\n", snap.ID)
		return nil
	},
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List live collections",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		ids := reg.GetCollectionIds()
		if len(ids) == 0 {
			fmt.Println("no collections found")
			return nil
		}
		fmt.Printf("%-12s %s\n", "ID", "NAME")
		for _, id := range ids {
			scoped, err := reg.GetSnapshot(id, 0)
			if err != nil {
				fmt.Printf("%-12d <error: %v>\n", id, err)
				continue
			}
			fmt.Printf("%-12d %s\n", id, scoped.Snapshot().Collection.GetName())
			scoped.Release()
		}
		return nil
	},
}

var collectionShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show a collection's active snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		scoped, err := reg.GetSnapshot(types.ID(id), 0)
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		defer scoped.Release()

		printSnapshot(scoped.Snapshot())
		return nil
	},
}

var collectionDropCmd = &cobra.Command{
	Use:   "drop ID",
	Short: "Drop a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid collection id %q: %w", args[0], err)
		}

		reg, err := openRegistry(cmd)
		if err != nil {
			return err
		}
		defer reg.StopService()

		if err := reg.DropCollection(types.ID(id), uuid.NewString()); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
		fmt.Printf("collection %d dropped\n", id)
		return nil
	},
}

func init() {
	collectionCreateCmd.Flags().String("params", "", "Collection params as a raw JSON blob")

	collectionCmd.AddCommand(collectionCreateCmd)
	collectionCmd.AddCommand(collectionListCmd)
	collectionCmd.AddCommand(collectionShowCmd)
	collectionCmd.AddCommand(collectionDropCmd)
}
