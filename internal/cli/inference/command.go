package inference

import (
	"strings"
)

// InferCommand returns "run" when the first positional argument is not a
// known subcommand, so "harness 3" means "harness run 3". takesValue reports
// whether a flag consumes the following argument.
func InferCommand(args, known []string, takesValue func(name string) bool) (string, []string) {
	if len(args) == 0 {
		return "", nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return "", args
		}
		if strings.HasPrefix(arg, "-") {
			name := strings.TrimLeft(arg, "-")
			if !strings.Contains(name, "=") && takesValue != nil && takesValue(name) {
				i++
			}
			continue
		}
		for _, k := range known {
			if arg == k {
				return "", args
			}
		}
		return "run", args
	}

	return "", args
}
