// usage.go: disk usage of the filesystem holding the media tree.
package diskmanager

import (
	"github.com/shirou/gopsutil/v3/disk"

	"github.com/mousetube/mousetube-go/internal/errors"
)

// DiskSpaceInfo holds detailed disk space information.
type DiskSpaceInfo struct {
	TotalBytes uint64
	UsedBytes  uint64
}

// GetDiskUsage returns the usage percentage of the filesystem containing
// the given path.
func GetDiskUsage(path string) (float64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, errors.New(err).
			Component("diskmanager").
			Category(errors.CategorySystem).
			Context("path", path).
			Build()
	}
	return usage.UsedPercent, nil
}

// GetDetailedDiskUsage returns total and used bytes for the filesystem
// containing the given path.
func GetDetailedDiskUsage(path string) (DiskSpaceInfo, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return DiskSpaceInfo{}, errors.New(err).
			Component("diskmanager").
			Category(errors.CategorySystem).
			Context("path", path).
			Build()
	}
	return DiskSpaceInfo{
		TotalBytes: usage.Total,
		UsedBytes:  usage.Used,
	}, nil
}
