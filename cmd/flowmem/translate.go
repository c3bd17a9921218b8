package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flowmem/address"
)

var translateCmd = &cobra.Command{
	Use:   "translate VADDR...",
	Short: "Resolve virtual addresses to physical addresses.",
	Long: "Resolve virtual addresses to physical addresses. All addresses " +
		"are walked together, one backend read per table level.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vaddrs := make([]address.Address, 0, len(args))
		for _, a := range args {
			v, err := parseAddress(a)
			if err != nil {
				return err
			}

			vaddrs = append(vaddrs, v)
		}

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		failed := 0

		for _, res := range s.translator.TranslateBatch(s.vmem.DTB(), vaddrs) {
			if res.Err != nil {
				failed++

				fmt.Fprintf(out, "%-18s  error: %v\n", res.VAddr, res.Err)

				continue
			}

			fmt.Fprintf(out, "%-18s  %-18s  %s page at %s\n",
				res.VAddr, res.Page.PAddr,
				res.Page.PageSize.HumanString(), res.Page.PageBase)
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d addresses did not translate",
				failed, len(vaddrs))
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)
}
