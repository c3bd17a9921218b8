package main

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/datarecording"
)

var reportCmd = &cobra.Command{
	Use:   "report RECORDING",
	Short: "Summarize a SQLite recording made with --record.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reader, err := datarecording.NewReader(args[0])
		if err != nil {
			return err
		}
		defer reader.Close()

		reader.MapTable(datarecording.ExecTable, datarecording.ExecInfo{})
		reader.MapTable(datarecording.CommitTable, datarecording.CommitEntry{})
		reader.MapTable(datarecording.WalkTable, datarecording.WalkEntry{})

		ctx := context.Background()
		out := cmd.OutOrStdout()

		execs, _, err := reader.Query(ctx, datarecording.ExecTable,
			datarecording.QueryParams{})
		if err != nil {
			return err
		}

		for _, e := range execs {
			info := e.(*datarecording.ExecInfo)
			fmt.Fprintf(out, "%-18s %s\n", info.Property+":", info.Value)
		}

		commits, numCommits, err := reader.Query(ctx, datarecording.CommitTable,
			datarecording.QueryParams{})
		if err != nil {
			return err
		}

		var reads, writes address.Length
		for _, c := range commits {
			entry := c.(*datarecording.CommitEntry)
			reads.AddAssign(address.Length(entry.ReadBytes))
			writes.AddAssign(address.Length(entry.WriteBytes))
		}

		_, numWalks, err := reader.Query(ctx, datarecording.WalkTable,
			datarecording.QueryParams{Limit: 1})
		if err != nil {
			return err
		}

		_, numFailed, err := reader.Query(ctx, datarecording.WalkTable,
			datarecording.QueryParams{Where: "Error != ''", Limit: 1})
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "%-18s %s (%s read, %s written)\n", "Commits:",
			humanize.Comma(int64(numCommits)),
			reads.HumanString(), writes.HumanString())
		fmt.Fprintf(out, "%-18s %s (%s failed)\n", "Translations:",
			humanize.Comma(int64(numWalks)), humanize.Comma(int64(numFailed)))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}
