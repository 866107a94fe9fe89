package hostinfo

import (
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// Platform returns a human-readable platform version string for run
// records, e.g. "ubuntu 24.04 (6.8.0-49-generic)". Falls back to
// GOOS/GOARCH when host information is unavailable.
func Platform() string {
	info, err := host.Info()
	if err != nil || info.Platform == "" {
		return fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)
	}

	return fmt.Sprintf("%s %s (%s)",
		info.Platform, info.PlatformVersion, info.KernelVersion)
}
