package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/mem/vm"
	"github.com/sarchlab/flowmem/monitoring"
)

const scanPage = 4 * address.KiB

// region is a run of virtual pages that map to contiguous physical memory.
// The printed range is inclusive so the last page of the address space can
// be shown.
type region struct {
	vstart, pstart address.Address
	size           address.Length
}

func (r region) follows(t vm.Translation) bool {
	if r.size == 0 {
		return false
	}

	vnext, err := r.vstart.CheckedAdd(r.size)
	if err != nil {
		return false
	}

	pnext, err := r.pstart.CheckedAdd(r.size)
	if err != nil {
		return false
	}

	return vnext == t.VAddr && pnext == t.Page.PAddr
}

func (r region) print(out io.Writer) {
	fmt.Fprintf(out, "%s-%s  ->  %s  %s\n",
		r.vstart, r.vstart.Add(r.size-1), r.pstart, r.size.HumanString())
}

// pagesIn returns the number of scan pages that cover n bytes.
func pagesIn(n address.Length) address.Length {
	pages := n / scanPage
	if n%scanPage != 0 {
		pages++
	}

	return pages
}

var scanCmd = &cobra.Command{
	Use:   "scan START END",
	Short: "List the mapped regions of a virtual range.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseAddress(args[0])
		if err != nil {
			return err
		}

		end, err := parseAddress(args[1])
		if err != nil {
			return err
		}

		batch, _ := cmd.Flags().GetInt("batch")
		if batch <= 0 {
			return fmt.Errorf("batch size must be positive, got %d", batch)
		}

		start = start.AlignDown(scanPage)
		if end <= start {
			return fmt.Errorf("empty range %s-%s", start, end)
		}

		s, err := openSession(cmd, false)
		if err != nil {
			return err
		}
		defer s.Close()

		total := pagesIn(end.Diff(start))

		var bar *monitoring.ProgressBar
		if s.monitor != nil {
			bar = s.monitor.CreateProgressBar("scan", total.Uint64())
			defer s.monitor.CompleteProgressBar(bar)
		}

		out := cmd.OutOrStdout()
		mapped := address.Zero()
		cur := region{}
		vaddrs := make([]address.Address, 0, batch)

		for next := start; next < end; {
			vaddrs = vaddrs[:0]
			for next < end && len(vaddrs) < batch {
				vaddrs = append(vaddrs, next)

				n, err := next.CheckedAdd(scanPage)
				if err != nil {
					next = end
					break
				}

				next = n
			}

			if bar != nil {
				bar.IncrementInProgress(uint64(len(vaddrs)))
			}

			for _, t := range s.translator.TranslateBatch(s.vmem.DTB(), vaddrs) {
				if t.Err != nil {
					if cur.size != 0 {
						cur.print(out)
						cur = region{}
					}

					continue
				}

				mapped.AddAssign(scanPage)

				if cur.follows(t) {
					cur.size.AddAssign(scanPage)
					continue
				}

				if cur.size != 0 {
					cur.print(out)
				}

				cur = region{vstart: t.VAddr, pstart: t.Page.PAddr, size: scanPage}
			}

			if bar != nil {
				bar.MoveInProgressToFinished(uint64(len(vaddrs)))
			}
		}

		if cur.size != 0 {
			cur.print(out)
		}

		fmt.Fprintf(out, "%s of %s pages mapped (%s)\n",
			humanize.Comma(int64(mapped/scanPage)),
			humanize.Comma(int64(total)),
			mapped.HumanString())

		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().Int("batch", 512, "pages translated per batch")
}
