package workflow

import (
	"fmt"

	"github.com/tombee/stitch/internal/yamlmap"
)

// StepKind is the closed set of step shapes the expander understands. A
// step's kind is decided once, when it is taken off the work queue, and
// drives a static dispatch instead of repeated key probing.
type StepKind int

const (
	// StepRun executes an inline script on the runner.
	StepRun StepKind = iota
	// StepUses invokes another action.
	StepUses
	// StepIncludes splices the steps of an includes action in place.
	StepIncludes
	// StepIncludesScript inlines a script file as a run step.
	StepIncludesScript
)

func (k StepKind) String() string {
	switch k {
	case StepRun:
		return "run"
	case StepUses:
		return "uses"
	case StepIncludes:
		return "includes"
	case StepIncludesScript:
		return "includes-script"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// ClassifyStep decides a step's kind from its keys. The probe order gives
// run and uses precedence, so a step that carries stray include-ish keys
// next to a run script still behaves as a run step.
func ClassifyStep(step *yamlmap.Map) (StepKind, error) {
	switch {
	case step.Has("run"):
		return StepRun, nil
	case step.Has("uses"):
		return StepUses, nil
	case step.Has("includes"):
		return StepIncludes, nil
	case step.Has("includes-script"):
		return StepIncludesScript, nil
	default:
		return 0, fmt.Errorf("unknown step type: %s", step)
	}
}

// shellForScript maps a script file suffix to the shell setting of the
// generated run step. Non-standard shells need the {0} placeholder for the
// temporary script path.
var shellForScript = map[string]string{
	".py":    "python",
	".ps1":   "pwsh",
	".cmd":   "cmd",
	".sh":    "bash",
	".rb":    "ruby {0}",
	".pl":    "perl {0}",
	".cmake": "cmake -P {0}",
}
