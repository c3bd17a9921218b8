package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flowmem/mem"
	"github.com/sarchlab/flowmem/mem/vm"
)

var readCmd = &cobra.Command{
	Use:   "read ADDR LEN",
	Short: "Read memory at a virtual or physical address.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		n, err := parseLength(args[1])
		if err != nil {
			return err
		}

		phys, _ := cmd.Flags().GetBool("phys")
		partial, _ := cmd.Flags().GetBool("partial")
		outPath, _ := cmd.Flags().GetString("out")

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		if n > s.dump.Size() {
			return fmt.Errorf("length %s exceeds the dump size %s",
				n.HumanString(), s.dump.Size().HumanString())
		}

		buf := make([]byte, n.Int())

		switch {
		case phys:
			err = mem.PhysRead(s.counter, addr, buf)
		case partial:
			var failed []vm.Translation
			failed, err = s.vmem.ReadVirtPartial(addr, buf)
			for _, f := range failed {
				fmt.Fprintf(cmd.ErrOrStderr(), "zero-filled %s: %v\n", f.VAddr, f.Err)
			}
		default:
			err = s.vmem.ReadVirt(addr, buf)
		}

		if err != nil {
			return err
		}

		if outPath != "" {
			return os.WriteFile(outPath, buf, 0o644)
		}

		_, err = fmt.Fprint(cmd.OutOrStdout(), hex.Dump(buf))

		return err
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
	readCmd.Flags().Bool("phys", false, "treat ADDR as a physical address")
	readCmd.Flags().Bool("partial", false, "zero-fill pages that are not mapped")
	readCmd.Flags().StringP("out", "o", "", "write raw bytes to a file instead of a hex dump")
}
