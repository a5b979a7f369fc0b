package suite

import (
	"path"
	"strings"
)

// Filter selects modules by name.
//
//  1. If Include is set, the name must match at least one include
//     pattern.
//  2. If the name matches any Exclude pattern, it is excluded.
//  3. Otherwise, the module runs.
type Filter struct {
	Include []string
	Exclude []string
}

// Allows reports whether the module called name should run.
func (f Filter) Allows(name string) bool {
	if len(f.Include) > 0 {
		matched := false
		for _, pattern := range f.Include {
			if matchGlob(pattern, name) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	for _, pattern := range f.Exclude {
		if matchGlob(pattern, name) {
			return false
		}
	}
	return true
}

// matchGlob matches a module name against a glob pattern. It supports
// path.Match syntax and "group/**" patterns that match every module
// under group.
func matchGlob(pattern, name string) bool {
	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		return name == prefix || strings.HasPrefix(name, prefix+"/")
	}
	matched, err := path.Match(pattern, name)
	if err != nil {
		return false
	}
	if matched {
		return true
	}
	// Patterns without a separator also match the last name segment,
	// so "persistent" matches "asyncworker/persistent".
	if !strings.Contains(pattern, "/") {
		matched, _ = path.Match(pattern, path.Base(name))
		return matched
	}
	return false
}
