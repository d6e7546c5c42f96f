package detector

import (
	"context"
	"fmt"
	"syscall"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// Replaceable in tests
var statfs = syscall.Statfs

const (
	diskWarnPercent = 80
	diskCritPercent = 90
)

// DiskDetector reports filesystems running out of space
type DiskDetector struct {
	paths []string
}

// NewDiskDetector watches the given mount points
func NewDiskDetector(paths []string) *DiskDetector {
	return &DiskDetector{paths: paths}
}

// Name identifies the detector in logs
func (d *DiskDetector) Name() string {
	return "disk"
}

// Check reports one candidate per mount point above the warn threshold
func (d *DiskDetector) Check(ctx context.Context) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	for _, path := range d.paths {
		var stat syscall.Statfs_t
		if err := statfs(path, &stat); err != nil {
			return nil, fmt.Errorf("statfs %s: %w", path, err)
		}

		totalBytes := stat.Blocks * uint64(stat.Bsize)
		if totalBytes == 0 {
			continue
		}
		freeBytes := stat.Bavail * uint64(stat.Bsize)
		usedPercent := float64(totalBytes-freeBytes) / float64(totalBytes) * 100

		if usedPercent < diskWarnPercent {
			continue
		}

		priority := domain.PriorityMedium
		title := fmt.Sprintf("Disk space low on %s", path)
		if usedPercent >= diskCritPercent {
			priority = domain.PriorityUrgent
			title = fmt.Sprintf("Disk almost full on %s", path)
		}

		candidates = append(candidates, domain.Candidate{
			Key:      "infra:disk-" + pathSlug(path),
			Category: domain.CategoryInfra,
			Title:    title,
			Message:  fmt.Sprintf("%s is %.0f%% full, %.1f GB free", path, usedPercent, float64(freeBytes)/(1024*1024*1024)),
			Priority: priority,
			Payload: map[string]string{
				"path":         path,
				"used_percent": fmt.Sprintf("%.1f", usedPercent),
			},
		})
	}
	return candidates, nil
}

func pathSlug(path string) string {
	if path == "/" {
		return "root"
	}
	return domain.Slug(path)
}
