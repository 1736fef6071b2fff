package batch

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"neuroflow/internal/services"
)

// preflight verifies the run can start: inputs exist, the output directory
// is writable, and it has enough free space. Any failure here aborts before
// the first item and is reported exactly once through the summary.
func preflight(spec JobSpec, minFreeSpaceMiB int) error {
	for _, input := range spec.Inputs {
		info, err := os.Stat(input)
		if err != nil {
			return services.Wrap(services.ErrIO, "batch", "preflight", fmt.Sprintf("input %s", input), err)
		}
		if info.IsDir() {
			return services.Wrap(services.ErrValidation, "batch", "preflight", fmt.Sprintf("input %s is a directory", input), nil)
		}
	}

	if err := os.MkdirAll(spec.OutputDir, 0o755); err != nil {
		return services.Wrap(services.ErrIO, "batch", "preflight", "create output directory", err)
	}
	if err := unix.Access(spec.OutputDir, unix.W_OK|unix.X_OK); err != nil {
		return services.Wrap(services.ErrIO, "batch", "preflight",
			fmt.Sprintf("output directory %s not writable", spec.OutputDir), err)
	}

	if minFreeSpaceMiB > 0 {
		var stat unix.Statfs_t
		if err := unix.Statfs(spec.OutputDir, &stat); err != nil {
			return services.Wrap(services.ErrIO, "batch", "preflight", "stat output filesystem", err)
		}
		freeMiB := stat.Bavail * uint64(stat.Bsize) / (1 << 20)
		if freeMiB < uint64(minFreeSpaceMiB) {
			return services.Wrap(services.ErrIO, "batch", "preflight",
				fmt.Sprintf("output filesystem has %d MiB free, need %d MiB", freeMiB, minFreeSpaceMiB), nil)
		}
	}
	return nil
}
