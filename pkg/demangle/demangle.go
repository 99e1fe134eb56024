// Package demangle converts compiler-mangled symbol names to human-readable
// form using a caller-owned pool of long-lived c++filt workers.
package demangle

import (
	"regexp"
	"strings"
)

var (
	cxxTokenPattern = regexp.MustCompile(`^_{0,2}Z[A-Za-z0-9_]+`)

	// Class::Method( from a demangled signature
	methodPattern = regexp.MustCompile(`(\w+)::(\w+)\s*\(`)
	// free function Name(
	freeFuncPattern = regexp.MustCompile(`^(\w+)\s*\(`)
)

// IsMangled reports whether name looks like an Itanium C++ mangled symbol,
// with or without the extra Mach-O leading underscore.
func IsMangled(name string) bool {
	return cxxTokenPattern.MatchString(name)
}

// Normalize strips the Mach-O symbol-table underscore so c++filt sees the
// conventional _Z prefix. Symbols that appear with a bare Z (notably .cold.N
// functions from hot/cold code splitting) gain the underscore back.
func Normalize(name string) string {
	if strings.HasPrefix(name, "__Z") {
		return name[1:]
	}
	if strings.HasPrefix(name, "Z") {
		return "_" + name
	}
	return name
}

// CanonicalNames derives the lookup keys for a demangled signature:
// Class::Method( becomes Class_Method and a free function Name( becomes
// Name. Both keys are returned when both forms appear.
func CanonicalNames(demangled string) []string {
	var keys []string
	if m := methodPattern.FindStringSubmatch(demangled); m != nil {
		keys = append(keys, m[1]+"_"+m[2])
	}
	if m := freeFuncPattern.FindStringSubmatch(demangled); m != nil {
		keys = append(keys, m[1])
	}
	return keys
}
