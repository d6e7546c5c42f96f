package detector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// ThermalDetector reports CPU temperature from sysfs thermal zones
type ThermalDetector struct {
	sysRoot string
	warnC   int
	critC   int
}

// NewThermalDetector alerts above warnC and escalates above critC (degrees
// Celsius)
func NewThermalDetector(warnC, critC int) *ThermalDetector {
	return &ThermalDetector{
		sysRoot: "/sys/class/thermal",
		warnC:   warnC,
		critC:   critC,
	}
}

// Name identifies the detector in logs
func (d *ThermalDetector) Name() string {
	return "thermal"
}

// Check reports the hottest thermal zone when it exceeds the warn threshold.
// Hosts without thermal zones report nothing.
func (d *ThermalDetector) Check(ctx context.Context) ([]domain.Candidate, error) {
	zones, err := filepath.Glob(filepath.Join(d.sysRoot, "thermal_zone*"))
	if err != nil {
		return nil, fmt.Errorf("list thermal zones: %w", err)
	}

	maxTemp := -1
	maxZone := ""
	for _, zone := range zones {
		raw, err := os.ReadFile(filepath.Join(zone, "temp"))
		if err != nil {
			continue
		}
		milli, err := strconv.Atoi(strings.TrimSpace(string(raw)))
		if err != nil {
			continue
		}

		temp := milli / 1000
		if temp <= maxTemp {
			continue
		}
		maxTemp = temp
		maxZone = zoneType(zone)
	}

	if maxTemp < d.warnC {
		return nil, nil
	}

	priority := domain.PriorityHigh
	title := "CPU running hot"
	if maxTemp >= d.critC {
		priority = domain.PriorityUrgent
		title = "CPU temperature critical"
	}

	return []domain.Candidate{{
		Key:      "infra:thermal",
		Category: domain.CategoryInfra,
		Title:    title,
		Message:  fmt.Sprintf("Zone %s at %d°C", maxZone, maxTemp),
		Priority: priority,
		Payload: map[string]string{
			"zone":    maxZone,
			"celsius": strconv.Itoa(maxTemp),
		},
	}}, nil
}

func zoneType(zone string) string {
	raw, err := os.ReadFile(filepath.Join(zone, "type"))
	if err != nil {
		return filepath.Base(zone)
	}
	return strings.TrimSpace(string(raw))
}
