package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flowmem/address"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Describe the dump and the paging format.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		arch := s.translator.Arch()
		out := cmd.OutOrStdout()

		fmt.Fprintf(out, "dump:    %s\n", s.dump.Path())
		fmt.Fprintf(out, "size:    %s (%d bytes)\n",
			s.dump.Size().HumanString(), s.dump.Size())
		fmt.Fprintf(out, "arch:    %s, %d-bit virtual addresses\n",
			arch.Name, arch.VirtualBits())
		fmt.Fprintf(out, "dtb:     %s\n", s.vmem.DTB())

		for i, l := range arch.Levels {
			kind := "table"
			if i == len(arch.Levels)-1 {
				kind = "page"
			} else if l.LargePage {
				kind = "table or large page"
			}

			fmt.Fprintf(out, "level %d: %-5s %s per entry, %s\n",
				i, l.Name, address.Length(l.PageSize()).HumanString(), kind)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
