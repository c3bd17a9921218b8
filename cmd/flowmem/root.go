package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sarchlab/flowmem/address"
	"github.com/sarchlab/flowmem/datarecording"
	"github.com/sarchlab/flowmem/hooking"
	"github.com/sarchlab/flowmem/idgen"
	"github.com/sarchlab/flowmem/mem"
	"github.com/sarchlab/flowmem/mem/filemem"
	"github.com/sarchlab/flowmem/mem/vm"
	"github.com/sarchlab/flowmem/mem/vm/tlb"
	"github.com/sarchlab/flowmem/monitoring"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flowmem",
	Short: "Inspect physical-memory dumps through their page tables.",
	Long: `flowmem opens a raw physical-memory dump, walks the page tables ` +
		`of one address space and reads or patches memory through virtual ` +
		`addresses. Flags can also be set through FLOWMEM_* environment ` +
		`variables or a .env file.`,
	SilenceUsage:      true,
	PersistentPreRunE: applyEnv,
}

// envFlags maps persistent flags to the variables that provide their
// defaults.
var envFlags = map[string]string{
	"dump":   "FLOWMEM_DUMP",
	"arch":   "FLOWMEM_ARCH",
	"dtb":    "FLOWMEM_DTB",
	"record": "FLOWMEM_RECORD",
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("dump", "", "raw physical-memory dump to open")
	flags.String("arch", "x64",
		"paging format, one of "+strings.Join(vm.ArchNames(), ", "))
	flags.String("dtb", "0", "page-table base of the address space")
	flags.String("record", "",
		"record commits and walks to a SQLite file or a clickhouse:// DSN")
	flags.BoolP("verbose", "v", false, "log every commit and walk")
	flags.Bool("monitor", false, "serve live statistics over HTTP")
	flags.Int("monitor-port", 0, "port for --monitor, random if 0")
	flags.Int("tlb", 0, "opt-in translation cache entries, 0 disables caching")
}

func applyEnv(cmd *cobra.Command, _ []string) error {
	var err error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		env, ok := envFlags[f.Name]
		if !ok || f.Changed || err != nil {
			return
		}

		if v := os.Getenv(env); v != "" {
			if setErr := f.Value.Set(v); setErr != nil {
				err = fmt.Errorf("%s: %w", env, setErr)
			}
		}
	})

	return err
}

func parseAddress(s string) (address.Address, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}

	return address.Address(v), nil
}

func parseLength(s string) (address.Length, error) {
	v, err := strconv.ParseUint(strings.ReplaceAll(s, "_", ""), 0, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid length %q", s)
	}

	return address.Length(v), nil
}

// session holds everything one command works with.
type session struct {
	logger     *zap.SugaredLogger
	dump       *filemem.Memory
	counter    *mem.CallCounter
	translator *vm.Translator
	tlb        *tlb.TLB
	vmem       *vm.VirtualMemory
	recorder   datarecording.DataRecorder
	monitor    *monitoring.Monitor
}

// openSession opens the dump named by the flags and wires logging,
// recording and monitoring around it. Writable sessions get a private
// copy-on-write mapping.
func openSession(cmd *cobra.Command, writable bool) (*session, error) {
	flags := cmd.Flags()
	verbose, _ := flags.GetBool("verbose")
	dumpPath, _ := flags.GetString("dump")
	archName, _ := flags.GetString("arch")
	dtbStr, _ := flags.GetString("dtb")
	record, _ := flags.GetString("record")

	if dumpPath == "" {
		return nil, errors.New("no dump given, use --dump or FLOWMEM_DUMP")
	}

	arch, err := vm.ArchByName(archName)
	if err != nil {
		return nil, err
	}

	dtb, err := parseAddress(dtbStr)
	if err != nil {
		return nil, err
	}

	s := &session{logger: hooking.NewLogger(verbose)}

	open := filemem.OpenReadOnly
	if writable {
		open = filemem.Open
	}

	s.dump, err = open(dumpPath)
	if err != nil {
		return nil, err
	}

	s.counter = mem.NewCallCounter(dumpPath, s.dump)

	builder := vm.MakeBuilder().
		WithArch(arch).
		WithMemory(s.counter).
		WithIDGenerator(idgen.NewParallel())

	if entries, _ := flags.GetInt("tlb"); entries > 0 {
		s.tlb = tlb.MakeBuilder().WithNumWays(entries).Build()
		builder = builder.WithCache(s.tlb)
	}

	if verbose {
		logHook := hooking.NewLogHook(s.logger)
		builder = builder.WithHook(logHook).WithBatcherHook(logHook)
	}

	if record != "" {
		s.recorder, err = datarecording.NewWithConfig(
			datarecording.ParseTarget(record))
		if err != nil {
			s.dump.Close()
			return nil, err
		}

		recordingHook := datarecording.NewRecordingHook(s.recorder)
		builder = builder.WithHook(recordingHook).WithBatcherHook(recordingHook)
	}

	if err := s.startMonitor(cmd); err != nil {
		s.Close()
		return nil, err
	}

	s.translator = builder.Build()
	s.vmem = vm.NewVirtualMemory(s.translator, dtb)

	s.logger.Debugw("session opened",
		"dump", dumpPath,
		"size", s.dump.Size().HumanString(),
		"arch", arch.Name,
		"dtb", dtb)

	return s, nil
}

func (s *session) startMonitor(cmd *cobra.Command) error {
	enabled, _ := cmd.Flags().GetBool("monitor")
	if !enabled {
		return nil
	}

	port, _ := cmd.Flags().GetInt("monitor-port")

	s.monitor = monitoring.NewMonitor().WithLogger(s.logger).WithPortNumber(port)
	s.monitor.RegisterBackend(s.counter)

	addr, err := s.monitor.StartServer()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Monitoring at %s\n", addr)

	return nil
}

// Close releases the dump and flushes the recording.
func (s *session) Close() error {
	stats := s.counter.Stats()
	s.logger.Debugw("backend traffic",
		"read_calls", stats.ReadCalls,
		"write_calls", stats.WriteCalls,
		"read_bytes", stats.ReadBytes,
		"write_bytes", stats.WriteBytes,
		"failed_calls", stats.FailedCalls)

	if s.tlb != nil {
		hits, misses := s.tlb.Stats()
		s.logger.Debugw("translation cache", "hits", hits, "misses", misses)
	}

	var errs []error
	if s.recorder != nil {
		errs = append(errs, s.recorder.Close())
	}

	errs = append(errs, s.dump.Close())
	_ = s.logger.Sync()

	return errors.Join(errs...)
}
