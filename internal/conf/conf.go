// Package conf parses and validates beamdump's recording configuration.
// It follows the teacher pattern of setDefaults()/validate() []error,
// aggregating every problem found rather than failing on the first one, so
// operators see every mistake in one pass.
package conf

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/hashicorp/go-multierror"
)

// MaxPacketLen is the hard cap on any single datagram or stdin block this
// program will accept (MMAXLEN in the reference implementation).
const MaxPacketLen = 10000

// MaxSockets bounds how many UDP sockets a single process may bind
// (MAXNSOCK in the reference implementation).
const MaxSockets = 64

// BeamformedPacketLen is the fixed packet length implied by --check.
const BeamformedPacketLen = 7824

// DefaultCompCommand is the default zstd invocation template; %s is
// substituted with the output filename.
const DefaultCompCommand = "zstd -1 --zstd='strategy=0,wlog=13,hlog=7,slog=1,slen=7' -q -f -T2 -o %s"

// Config holds the fully parsed and validated recording configuration.
type Config struct {
	Ports    []int
	PortList string // raw --ports value, used verbatim in filenames
	Stdin    bool   // true iff Ports == []int{0}

	Out string

	Len      int  // 0 = accept any length up to MaxPacketLen
	SizeHead bool // prepend 2-byte length to each stored record

	BufSize  int64 // VRB minimum capacity, bytes
	MaxWrite int64 // maximum bytes per write syscall

	Timeout time.Duration

	Start *time.Time
	End   *time.Time
	// Duration, when nonzero, combines with Start (or "now") to produce the
	// effective end instant when recording starts; Validate leaves End and
	// Duration as given and only rejects setting both.
	Duration time.Duration

	// MaxFileSize is the absolute split-file threshold in bytes; 0 means no
	// splitting. StatPerSplitFile mirrors the sign of the raw --Maxfilesize
	// value: positive reports per split file, negative reports combined.
	MaxFileSize      int64
	StatPerSplitFile bool

	Check bool // beamformed-packet accounting; forces Len == 7824

	Compress     bool
	CompCommand  string
	PathOverride string

	Verbose bool
}

// New returns a Config with every default from spec §6 applied.
func New() *Config {
	return &Config{
		PortList:         "4346",
		Out:              "udp",
		BufSize:          104_857_600,
		MaxWrite:         1_048_576,
		Timeout:          10 * time.Second,
		StatPerSplitFile: true,
		CompCommand:      DefaultCompCommand,
	}
}

// Validate expands the port list and checks every field against spec §6's
// constraints. It returns every problem found, joined with
// github.com/hashicorp/go-multierror exactly the way the teacher's own
// Conf.validate() aggregates per-section errors.
func (c *Config) Validate() error {
	var errs *multierror.Error

	ports, err := ParsePortList(c.PortList)
	if err != nil {
		errs = multierror.Append(errs, err)
	} else {
		c.Ports = ports
		c.Stdin = len(ports) == 1 && ports[0] == 0
	}

	if c.Len != 0 && (c.Len < 0 || c.Len >= MaxPacketLen) {
		errs = multierror.Append(errs, fmt.Errorf("--len must be in [1, %d)", MaxPacketLen))
	}
	if c.Check {
		if c.Len != 0 && c.Len != BeamformedPacketLen {
			errs = multierror.Append(errs, fmt.Errorf("--check implies --len %d, cannot use another value", BeamformedPacketLen))
		}
		c.Len = BeamformedPacketLen
	}

	if c.BufSize <= 10_000 || c.BufSize > 16_000_000_000 {
		errs = multierror.Append(errs, fmt.Errorf("--bufsize must be in (1e4, 16e9], got %s", datasize.ByteSize(c.BufSize).HR()))
	}
	if c.MaxWrite <= 1024 {
		errs = multierror.Append(errs, fmt.Errorf("--maxwrite must be > 1024, got %d", c.MaxWrite))
	}
	if c.Timeout < time.Millisecond {
		errs = multierror.Append(errs, fmt.Errorf("--timeout must be >= 1ms, got %s", c.Timeout))
	}

	if c.End != nil && c.Duration != 0 {
		errs = multierror.Append(errs, fmt.Errorf("--End and --duration are mutually exclusive"))
	}

	if c.Stdin {
		if c.Len == 0 {
			errs = multierror.Append(errs, fmt.Errorf("reading from stdin (--ports 0) requires --len"))
		}
		if c.Start != nil || c.End != nil || c.Duration != 0 {
			errs = multierror.Append(errs, fmt.Errorf("reading from stdin is not compatible with --Start, --End, --duration"))
		}
	}

	if c.MaxFileSize < 0 {
		c.StatPerSplitFile = false
		c.MaxFileSize = -c.MaxFileSize
	}

	if c.Compress && !strings.Contains(c.CompCommand, "%s") {
		errs = multierror.Append(errs, fmt.Errorf("--compcommand must contain %%s for the filename"))
	}

	return errs.ErrorOrNil()
}

// ParsePortList expands a comma-separated port list where a token "N" is a
// single port and "NxK" expands to K consecutive ports starting at N. The
// single token "0" selects stdin mode instead of UDP sockets.
func ParsePortList(list string) ([]int, error) {
	var ports []int
	for _, tok := range strings.Split(list, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if i := strings.IndexByte(tok, 'x'); i >= 0 {
			start, err := strconv.Atoi(tok[:i])
			if err != nil {
				return nil, fmt.Errorf("invalid port token %q: %w", tok, err)
			}
			count, err := strconv.Atoi(tok[i+1:])
			if err != nil {
				return nil, fmt.Errorf("invalid port token %q: %w", tok, err)
			}
			for k := 0; k < count; k++ {
				ports = append(ports, start+k)
			}
		} else {
			port, err := strconv.Atoi(tok)
			if err != nil {
				return nil, fmt.Errorf("invalid port token %q: %w", tok, err)
			}
			ports = append(ports, port)
		}
		if len(ports) > MaxSockets {
			return nil, fmt.Errorf("number of sockets too large (> %d)", MaxSockets)
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("empty port list")
	}
	if len(ports) > 1 {
		for _, p := range ports {
			if p == 0 {
				return nil, fmt.Errorf("port 0 (stdin) cannot be combined with other ports")
			}
		}
	}
	return ports, nil
}
