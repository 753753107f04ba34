package taskmanager

import (
	"reflect"
	"strings"
)

// Policy is the fw_policy block.
type Policy struct {
	RerunSameDir               bool   `yaml:"rerun_same_dir"`
	MaxRestarts                int    `yaml:"max_restarts"`
	Autoparal                  bool   `yaml:"autoparal"`
	AbipyManager               string `yaml:"abipy_manager"`
	ExecTimeout                int    `yaml:"exec_timeout"`
	AllowLocalRestart          bool   `yaml:"allow_local_restart"`
	TimelimitBuffer            int    `yaml:"timelimit_buffer"`
	ShortJobTimelimit          int    `yaml:"short_job_timelimit"`
	RecoverPreviousJob         bool   `yaml:"recover_previous_job"`
	WalltimeCommand            string `yaml:"walltime_command"`
	ContinueUnconvergedOnRerun bool   `yaml:"continue_unconverged_on_rerun"`
	MPIRunCmd                  string `yaml:"mpirun_cmd"`
	CopyDeps                   bool   `yaml:"copy_deps"`
}

func DefaultPolicy() Policy {
	return Policy{
		MaxRestarts:                10,
		TimelimitBuffer:            120,
		ShortJobTimelimit:          600,
		RecoverPreviousJob:         true,
		ContinueUnconvergedOnRerun: true,
		MPIRunCmd:                  "mpirun",
	}
}

func policyKeys() map[string]bool {
	t := reflect.TypeOf(Policy{})
	out := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("yaml"), ",")
		out[name] = true
	}
	return out
}
