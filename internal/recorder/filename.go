package recorder

import (
	"fmt"
	"os"
	"time"

	"github.com/lofar-obs/beamdump/internal/conf"
)

// sinkFilename builds a path from the template in spec.md §6:
//
//	<base>_<portlist>.<host>.<YYYY-MM-DDTHH:MM:SS.mmm>[_NNNN][.zst]
//
// "/dev/null" is passed through verbatim regardless of any other setting.
func sinkFilename(cfg *conf.Config, at time.Time, seq int, splitting bool) (string, error) {
	if cfg.Out == os.DevNull {
		return os.DevNull, nil
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown-host"
	}

	stamp := at.UTC().Format("2006-01-02T15:04:05.000")

	name := fmt.Sprintf("%s_%s.%s.%s", cfg.Out, cfg.PortList, host, stamp)
	if splitting {
		name = fmt.Sprintf("%s_%04d", name, seq)
	}
	if cfg.Compress {
		name += ".zst"
	}
	return name, nil
}
