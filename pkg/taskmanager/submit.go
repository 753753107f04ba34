package taskmanager

import (
	"fmt"
	"strconv"
	"strings"
)

// ShortSingleCoreSpec returns the queue adapter substitutions for a short
// single-core job on the first adapter. timelimit is in seconds; zero means
// Policy.ShortJobTimelimit. Without a task manager the result is empty.
func (m *Manager) ShortSingleCoreSpec(timelimit int) (map[string]any, error) {
	out := map[string]any{}
	if !m.HasTaskManager() {
		return out, nil
	}
	if timelimit <= 0 {
		timelimit = m.Policy.ShortJobTimelimit
	}
	qa := m.tm.QAdapters[0]

	if raw, ok := qa.Limits["timelimit_hard"]; ok {
		hard, err := ParseTimelimit(raw)
		if err != nil {
			return nil, fmt.Errorf("limits.timelimit_hard: %w", err)
		}
		if timelimit > hard {
			return nil, fmt.Errorf("timelimit %ds exceeds hard limit %ds of queue %q", timelimit, hard, qa.QName())
		}
	}

	out["ntasks"] = 1
	out["cpus_per_task"] = 1
	switch qa.QType() {
	case "pbspro", "torque":
		out["select"] = 1
		out["ncpus"] = 1
		out["walltime"] = FormatPBS(timelimit)
	default:
		out["time"] = FormatSlurm(timelimit)
	}
	if name := qa.QName(); name != "" {
		out["partition"] = name
	}
	if mem, ok := qa.Hardware["mem_per_node"]; ok {
		out["mem_per_cpu"] = mem
	}
	if acct, ok := qa.Queue["account"]; ok {
		out["account"] = acct
	}
	return out, nil
}

// SetShortSingleCoreToSpec stores the short single-core submission under
// _queueadapter and forces mpi_ncpus to 1. A nil spec is allocated.
func (m *Manager) SetShortSingleCoreToSpec(spec map[string]any, timelimit int) (map[string]any, error) {
	qspec, err := m.ShortSingleCoreSpec(timelimit)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		spec = map[string]any{}
	}
	spec["mpi_ncpus"] = 1
	spec["_queueadapter"] = qspec
	return spec, nil
}

// FormatSlurm renders seconds as D-H:M:S without padding, 610 -> "0-0:10:10".
func FormatSlurm(seconds int) string {
	d, rem := seconds/86400, seconds%86400
	h, rem := rem/3600, rem%3600
	return fmt.Sprintf("%d-%d:%d:%d", d, h, rem/60, rem%60)
}

// FormatPBS renders seconds as H:MM:SS.
func FormatPBS(seconds int) string {
	h, rem := seconds/3600, seconds%3600
	return fmt.Sprintf("%d:%02d:%02d", h, rem/60, rem%60)
}

// ParseTimelimit accepts seconds, "H:M:S", "M:S" or the slurm day forms
// "D-H", "D-H:M" and "D-H:M:S".
func ParseTimelimit(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		return int(t), nil
	case string:
		return parseClock(t)
	default:
		return 0, fmt.Errorf("unsupported timelimit %v", v)
	}
}

func parseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	days := 0
	d, rest, hasDays := strings.Cut(s, "-")
	if hasDays {
		n, err := strconv.Atoi(d)
		if err != nil {
			return 0, fmt.Errorf("timelimit %q: %w", s, err)
		}
		days, s = n, rest
	}
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("timelimit %q: too many fields", s)
	}
	// After a day count the fields are D-H, D-H:M or D-H:M:S.
	for hasDays && len(parts) < 3 {
		parts = append(parts, "0")
	}
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, fmt.Errorf("timelimit %q: %w", s, err)
		}
		total = total*60 + n
	}
	return days*86400 + total, nil
}
