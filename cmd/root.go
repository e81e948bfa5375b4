// Package cmd implements beamdump's command line: a single cobra root
// command (this tool has one job, so there are no subcommands), flag
// parsing into a conf.Config, and the top-level Run/Close sequence around
// the recorder.
package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
	"github.com/lofar-obs/beamdump/internal/logging"
	"github.com/lofar-obs/beamdump/internal/recorder"
	"github.com/spf13/cobra"
)

var (
	flagPorts       string
	flagOut         string
	flagLen         int
	flagSizeHead    bool
	flagBufSize     float64
	flagMaxWrite    int64
	flagTimeout     float64
	flagStart       string
	flagEnd         string
	flagDuration    float64
	flagMaxFileSize float64
	flagCheck       bool
	flagCompress    bool
	flagCompCommand string
	flagPath        string
	flagVerbose     bool
	flagExtraHelp   bool
)

// Execute builds and runs the root command, returning any error that should
// translate to a nonzero exit code.
func Execute() error {
	return rootCmd().Execute()
}

func rootCmd() *cobra.Command {
	defaults := conf.New()

	cmd := &cobra.Command{
		Use:   "beamdump",
		Short: "Record UDP datagrams to disk at radio-telescope line rates",
		Long: `beamdump captures UDP datagrams from one or more ports (or standard
input) at radio-telescope line rates and writes them, losslessly, to disk,
optionally through a compression subprocess.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRoot,
	}

	flags := cmd.Flags()
	flags.StringVarP(&flagPorts, "ports", "p", defaults.PortList, "comma-separated port list; NxK expands to K ports from N; 0 selects stdin")
	flags.StringVarP(&flagOut, "out", "o", defaults.Out, "base output path; /dev/null is used verbatim")
	flags.IntVarP(&flagLen, "len", "l", defaults.Len, "fixed packet length (0 = accept any length)")
	flags.BoolVarP(&flagSizeHead, "sizehead", "s", false, "prepend a 2-byte length to every stored packet")
	flags.Float64VarP(&flagBufSize, "bufsize", "b", float64(defaults.BufSize), "ring buffer minimum capacity in bytes")
	flags.Int64VarP(&flagMaxWrite, "maxwrite", "m", defaults.MaxWrite, "maximum bytes per write syscall")
	flags.Float64VarP(&flagTimeout, "timeout", "t", defaults.Timeout.Seconds(), "idle timeout in seconds")
	flags.StringVarP(&flagStart, "Start", "S", "", "start instant (unix seconds or YYYY-MM-DDTHH:MM:SS UTC)")
	flags.StringVarP(&flagEnd, "End", "E", "", "end instant; mutually exclusive with --duration")
	flags.Float64VarP(&flagDuration, "duration", "d", 0, "recording duration in seconds; mutually exclusive with --End")
	flags.Float64VarP(&flagMaxFileSize, "Maxfilesize", "M", 0, "split size in bytes; negative combines statistics across splits")
	flags.BoolVarP(&flagCheck, "check", "c", false, "enable beamformed packet accounting (forces --len 7824)")
	flags.BoolVarP(&flagCompress, "compress", "z", false, "pipe output through the configured compressor")
	flags.StringVarP(&flagCompCommand, "compcommand", "Z", defaults.CompCommand, "compressor command template; must contain %s")
	flags.StringVarP(&flagPath, "path", "P", "", "override PATH for child processes")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose diagnostics")
	flags.BoolVarP(&flagExtraHelp, "Help", "H", false, "show extended help")

	return cmd
}

func runRoot(cmd *cobra.Command, args []string) error {
	if flagExtraHelp {
		return cmd.Help()
	}

	cfg := conf.New()
	cfg.PortList = flagPorts
	cfg.Out = flagOut
	cfg.Len = flagLen
	cfg.SizeHead = flagSizeHead
	cfg.BufSize = int64(flagBufSize)
	cfg.MaxWrite = flagMaxWrite
	cfg.Timeout = time.Duration(flagTimeout * float64(time.Second))
	cfg.Duration = time.Duration(flagDuration * float64(time.Second))
	cfg.MaxFileSize = int64(flagMaxFileSize)
	cfg.Check = flagCheck
	cfg.Compress = flagCompress
	cfg.CompCommand = flagCompCommand
	cfg.PathOverride = flagPath
	cfg.Verbose = flagVerbose

	if flagStart != "" {
		start, err := parseWhen(flagStart)
		if err != nil {
			return fmt.Errorf("--Start: %w", err)
		}
		cfg.Start = start
	}
	if flagEnd != "" {
		end, err := parseWhen(flagEnd)
		if err != nil {
			return fmt.Errorf("--End: %w", err)
		}
		cfg.End = end
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(verbosityLevel(cfg.Verbose))
	defer logger.Close()

	rec, err := recorder.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing recorder: %w", err)
	}
	defer rec.Close()

	reason := rec.Run()
	logger.Infof("stopped: %s", reason)
	return nil
}

// verbosityLevel maps --verbose to a zapcore level: debug output when set,
// info-and-above otherwise.
func verbosityLevel(verbose bool) int {
	if verbose {
		return -1 // zapcore.DebugLevel
	}
	return 0 // zapcore.InfoLevel
}

// parseWhen parses a CLI instant as either a Unix-seconds float or a UTC
// timestamp in YYYY-MM-DDTHH:MM:SS form, per spec.md §6.
func parseWhen(s string) (*time.Time, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		t := time.Unix(0, int64(f*float64(time.Second))).UTC()
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02T15:04:05", s, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("not a unix timestamp or YYYY-MM-DDTHH:MM:SS: %w", err)
	}
	return &t, nil
}
