package recorder

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
)

// sink is the active output target: either a plain file or the stdin pipe
// of a spawned compressor child process. Exactly one is open at a time, per
// spec.md §3's "File handle" data model entry.
type sink struct {
	path string

	file *os.File // set when writing directly to a regular file
	cmd  *exec.Cmd
	pipe *os.File // write end of the pipe into cmd's stdin, when compressing

	bytesWritten int64
	opened       time.Time
}

// Write implements io.Writer by forwarding to whichever underlying stream is
// active.
func (s *sink) Write(p []byte) (int, error) {
	if s.pipe != nil {
		n, err := s.pipe.Write(p)
		s.bytesWritten += int64(n)
		return n, err
	}
	n, err := s.file.Write(p)
	s.bytesWritten += int64(n)
	return n, err
}

// openSink builds the filename from the template in spec.md §6, then opens
// either a plain file or a compressor subprocess. The value "/dev/null" is
// passed through verbatim, matching spec.md §4.3 "Sink open".
func openSink(cfg *conf.Config, at time.Time, seq int, splitting bool) (*sink, error) {
	path, err := sinkFilename(cfg, at, seq, splitting)
	if err != nil {
		return nil, err
	}

	if path == "/dev/null" {
		f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", os.DevNull, err)
		}
		return &sink{path: path, file: f, opened: at}, nil
	}

	if !cfg.Compress {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("creating %s: %w", path, err)
		}
		return &sink{path: path, file: f, opened: at}, nil
	}

	return openCompressedSink(cfg, path, at)
}

// openCompressedSink spawns the configured compressor command with "%s"
// substituted by the output path, and connects its stdin to the returned
// sink's Write method. The child itself creates the output file, per
// spec.md's "Sink open" note.
func openCompressedSink(cfg *conf.Config, path string, at time.Time) (*sink, error) {
	commandLine := fmt.Sprintf(cfg.CompCommand, path)
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty compressor command")
	}

	cmd := exec.Command(fields[0], fields[1:]...)
	cmd.Stderr = os.Stderr
	if cfg.PathOverride != "" {
		cmd.Env = append(os.Environ(), "PATH="+cfg.PathOverride)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("wiring compressor stdin: %w", err)
	}
	pipe, ok := stdin.(*os.File)
	if !ok {
		// exec always returns an *os.File from StdinPipe; this is only a
		// defensive cross-check, not a platform-dependent branch.
		return nil, fmt.Errorf("compressor stdin pipe has unexpected type %T", stdin)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("spawning compressor %q: %w", fields[0], err)
	}

	return &sink{path: path, cmd: cmd, pipe: pipe, opened: at}, nil
}

// close flushes and closes the sink. If this was a compressed sink, it waits
// for the child to exit and stats the resulting file to compute the
// compression ratio Statistics reports on close, per spec.md §4.3 step 3.
func (s *sink) close() (compressionRatio float64, err error) {
	if s.pipe != nil {
		if cerr := s.pipe.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing compressor stdin: %w", cerr)
		}
		if werr := s.cmd.Wait(); werr != nil && err == nil {
			err = fmt.Errorf("compressor %q: %w", s.cmd.Path, werr)
		}
		if err == nil && s.path != os.DevNull {
			if fi, serr := os.Stat(s.path); serr == nil && fi.Size() > 0 {
				compressionRatio = float64(s.bytesWritten) / float64(fi.Size())
			}
		}
		return compressionRatio, err
	}

	if cerr := s.file.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("closing %s: %w", s.path, cerr)
	}
	return 1.0, err
}
