// Package flagx splits one command line between the config layers of the
// custodian and sealctl. Each layer picks out only the flags it owns, so the
// standard flag package never sees a flag it does not define.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// joined reports whether arg carries its value after '=' and returns the
// flag name.
func joined(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", false
	}
	name, _, ok := strings.Cut(arg, "=")
	return name, ok
}

// valueAt reports whether args[i] can be the value of the flag before it.
func valueAt(args []string, i int) bool {
	return i < len(args) && !strings.HasPrefix(args[i], "-")
}

// FilterArgs keeps the flags named in owned, together with their values,
// in their original order. Both "-a 10.0.0.1:8788" and "-a=10.0.0.1:8788"
// are understood; a dash-prefixed token never counts as a value. The result
// is never nil.
func FilterArgs(args []string, owned []string) []string {
	keep := make(map[string]bool, len(owned))
	for _, f := range owned {
		keep[f] = true
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if name, ok := joined(args[i]); ok {
			if keep[name] {
				out = append(out, args[i])
			}
			continue
		}
		if !keep[args[i]] {
			continue
		}
		out = append(out, args[i])
		if valueAt(args, i+1) {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// Positional returns the sealctl command words: everything that is neither
// a flag nor a flag's value. Every flag is assumed to take a value, which
// holds for all saltkeeper binaries. "--" ends flag parsing.
//
//	Positional([]string{"-a", "10.67.0.1:8788", "open", "answers", "s1", "q1"})
//	// []string{"open", "answers", "s1", "q1"}
func Positional(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--":
			return append(out, args[i+1:]...)
		case strings.HasPrefix(arg, "-"):
			if _, ok := joined(arg); !ok && valueAt(args, i+1) {
				i++
			}
		default:
			out = append(out, arg)
		}
	}
	return out
}

// ConfigPath returns the JSON config file named by -c or -config in args,
// or "" when neither is given. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to the JSON config file")
	fs.StringVar(&path, "c", "", "path to the JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))
	return path
}
