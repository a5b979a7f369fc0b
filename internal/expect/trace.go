package expect

import (
	"fmt"
	"reflect"
	"regexp"
	"runtime"
	"strings"
)

const anonymous = "<anonymous>"

// maxTraceDepth bounds the frames kept per registration.
const maxTraceDepth = 32

// selfPrefix identifies this package's frames so they can be elided
// from registration traces. External test packages (expect_test) do
// not match because of the trailing dot.
var selfPrefix = reflect.TypeOf(Harness{}).PkgPath() + "."

type frame struct {
	function string
	file     string
	line     int
}

func (f frame) location() string {
	return fmt.Sprintf("%s:%d", f.file, f.line)
}

func (f frame) String() string {
	return fmt.Sprintf("%s (%s:%d)", f.function, f.file, f.line)
}

// captureTrace returns the caller frames of the current registration,
// with harness-internal, runtime and testing frames removed.
func captureTrace() []frame {
	pcs := make([]uintptr, maxTraceDepth+8)
	n := runtime.Callers(1, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	var out []frame
	for {
		f, more := frames.Next()
		if !elided(f.Function) {
			out = append(out, frame{function: f.Function, file: f.File, line: f.Line})
			if len(out) == maxTraceDepth {
				break
			}
		}
		if !more {
			break
		}
	}
	return out
}

func elided(function string) bool {
	return strings.HasPrefix(function, selfPrefix) ||
		strings.HasPrefix(function, "runtime.") ||
		strings.HasPrefix(function, "testing.") ||
		strings.HasPrefix(function, "reflect.")
}

func formatTrace(frames []frame) []string {
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}
	return out
}

// closureName matches compiler-generated names for function literals,
// e.g. "TestX.func1", "TestX.func1.2" or "glob..func3".
var closureName = regexp.MustCompile(`(^|\.)(func|gowrap)\d+(\.\d+)*$`)

// funcName returns the short symbol name of fv, or "<anonymous>" for
// closures and nil functions.
func funcName(fv reflect.Value) string {
	if !fv.IsValid() || fv.Kind() != reflect.Func || fv.IsNil() {
		return anonymous
	}
	fn := runtime.FuncForPC(fv.Pointer())
	if fn == nil {
		return anonymous
	}
	name := fn.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "."); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, "-fm")
	if name == "" || closureName.MatchString(name) {
		return anonymous
	}
	return name
}
