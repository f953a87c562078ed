package toolchain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"github.com/colonise/forge/pkg/types"
)

// Placeholder names recognised in configured arguments.
const (
	PlaceholderFiles     = "files"
	PlaceholderHook      = "hook"
	PlaceholderOutDir    = "outDir"
	PlaceholderReportDir = "reportDir"
	PlaceholderBuildDir  = "buildDir"
	PlaceholderSourceDir = "sourceDir"
)

// Vars maps placeholder names to values. An argument that is exactly
// "{name}" expands to one argument per value, and so does a flag ending in
// "={name}" ("--include={files}" becomes "--include=a --include=b"). A
// placeholder embedded anywhere else is replaced by the values joined with
// spaces.
type Vars map[string][]string

// With returns a copy of v with name set to values.
func (v Vars) With(name string, values ...string) Vars {
	out := make(Vars, len(v)+1)
	for k, vals := range v {
		out[k] = vals
	}
	out[name] = values
	return out
}

// Expand turns a configured command into a runnable Command. A command string
// without explicit args is split with shell quoting rules; one that uses
// shell operators is run through "sh -c".
func Expand(cfg types.CommandConfig, vars Vars) (Command, error) {
	if cfg.IsZero() {
		return Command{}, ErrCommandNameMissing
	}

	name := strings.TrimSpace(cfg.Command)
	var args []string

	if len(cfg.Args) == 0 {
		if needsShell(name) {
			return Command{
				Name: "sh",
				Args: []string{"-c", expandString(name, vars)},
				Dir:  cfg.Dir,
				Env:  expandEnv(cfg.Environment, vars),
			}, nil
		}
		parts, err := shellquote.Split(name)
		if err != nil {
			return Command{}, fmt.Errorf("invalid command %q: %w", cfg.Command, err)
		}
		if len(parts) == 0 {
			return Command{}, ErrCommandNameMissing
		}
		name, args = parts[0], parts[1:]
	} else {
		args = cfg.Args
	}

	return Command{
		Name: name,
		Args: expandArgs(args, vars),
		Dir:  cfg.Dir,
		Env:  expandEnv(cfg.Environment, vars),
	}, nil
}

func expandArgs(args []string, vars Vars) []string {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if values, ok := vars[placeholderName(arg)]; ok {
			out = append(out, values...)
			continue
		}
		if flag, name, ok := repeatedFlag(arg); ok {
			if values, ok := vars[name]; ok {
				for _, value := range values {
					out = append(out, flag+value)
				}
				continue
			}
		}
		out = append(out, expandString(arg, vars))
	}
	return out
}

func expandString(s string, vars Vars) string {
	if !strings.Contains(s, "{") {
		return s
	}
	// Longest names first so a name that prefixes another is never replaced
	// inside it.
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })

	for _, name := range names {
		s = strings.ReplaceAll(s, "{"+name+"}", strings.Join(vars[name], " "))
	}
	return s
}

func expandEnv(env map[string]string, vars Vars) map[string]string {
	if len(env) == 0 {
		return nil
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = expandString(v, vars)
	}
	return out
}

func placeholderName(arg string) string {
	if len(arg) > 2 && strings.HasPrefix(arg, "{") && strings.HasSuffix(arg, "}") {
		return arg[1 : len(arg)-1]
	}
	return ""
}

// repeatedFlag splits "--flag={name}" into "--flag=" and name.
func repeatedFlag(arg string) (string, string, bool) {
	if !strings.HasPrefix(arg, "-") {
		return "", "", false
	}
	i := strings.Index(arg, "={")
	if i < 0 {
		return "", "", false
	}
	name := placeholderName(arg[i+1:])
	if name == "" {
		return "", "", false
	}
	return arg[:i+1], name, true
}

func needsShell(command string) bool {
	for _, op := range []string{"&&", "||", "|", ";", ">", "<"} {
		if strings.Contains(command, op) {
			return true
		}
	}
	return false
}

// mergeEnv overlays extra onto base without modifying either.
func mergeEnv(base, extra map[string]string) map[string]string {
	if len(base) == 0 && len(extra) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
