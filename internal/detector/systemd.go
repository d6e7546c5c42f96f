package detector

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/vigilhq/vigil/internal/biz/domain"
)

// Replaceable in tests
var runSystemctl = func(ctx context.Context, unit string) (string, error) {
	cmd := exec.CommandContext(ctx, "systemctl", "show", unit,
		"--property=LoadState,ActiveState,SubState")
	output, err := cmd.Output()
	return string(output), err
}

// SystemdDetector reports watched units that are not running
type SystemdDetector struct {
	units []string
}

// NewSystemdDetector watches the given systemd units
func NewSystemdDetector(units []string) *SystemdDetector {
	return &SystemdDetector{units: units}
}

// Name identifies the detector in logs
func (d *SystemdDetector) Name() string {
	return "systemd"
}

// Check reports one candidate per watched unit that is not active
func (d *SystemdDetector) Check(ctx context.Context) ([]domain.Candidate, error) {
	var candidates []domain.Candidate
	for _, unit := range d.units {
		fullName := unit
		if !strings.Contains(fullName, ".") {
			fullName = unit + ".service"
		}

		output, err := runSystemctl(ctx, fullName)
		if err != nil {
			return nil, fmt.Errorf("systemctl show %s: %w", fullName, err)
		}

		loadState, activeState, subState := parseUnitState(output)

		var title, message string
		switch {
		case loadState == "not-found":
			title = fmt.Sprintf("Service %s not found", unit)
			message = fmt.Sprintf("Unit %s is not installed on this host", fullName)
		case activeState != "" && activeState != "active":
			title = fmt.Sprintf("Service %s is down", unit)
			message = fmt.Sprintf("Unit %s is %s (%s)", fullName, activeState, subState)
		default:
			continue
		}

		candidates = append(candidates, domain.Candidate{
			Key:      "infra:service-" + domain.Slug(unit),
			Category: domain.CategoryInfra,
			Title:    title,
			Message:  message,
			Priority: domain.PriorityHigh,
			Payload: map[string]string{
				"unit":         fullName,
				"active_state": activeState,
			},
		})
	}
	return candidates, nil
}

func parseUnitState(output string) (loadState, activeState, subState string) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		switch parts[0] {
		case "LoadState":
			loadState = parts[1]
		case "ActiveState":
			activeState = parts[1]
		case "SubState":
			subState = parts[1]
		}
	}
	return loadState, activeState, subState
}
