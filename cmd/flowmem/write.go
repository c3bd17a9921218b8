package main

import (
	"encoding/hex"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sarchlab/flowmem/mem"
)

var writeCmd = &cobra.Command{
	Use:   "write ADDR HEXBYTES",
	Short: "Patch memory and save the result as a new dump.",
	Long: "Patch memory at a virtual or physical address. The dump itself " +
		"is never modified; the patched image is written to --out.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		data, err := hex.DecodeString(strings.ReplaceAll(args[1], " ", ""))
		if err != nil {
			return err
		}

		phys, _ := cmd.Flags().GetBool("phys")
		outPath, _ := cmd.Flags().GetString("out")

		if outPath == "" {
			return errors.New("write needs --out for the patched dump")
		}

		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.Close()

		if phys {
			err = mem.PhysWrite(s.counter, addr, data)
		} else {
			err = s.vmem.WriteVirt(addr, data)
		}

		if err != nil {
			return err
		}

		f, err := os.Create(outPath)
		if err != nil {
			return err
		}

		if _, err := s.dump.WriteTo(f); err != nil {
			f.Close()
			return err
		}

		return f.Close()
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
	writeCmd.Flags().Bool("phys", false, "treat ADDR as a physical address")
	writeCmd.Flags().StringP("out", "o", "", "path of the patched dump")
}
