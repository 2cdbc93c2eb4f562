package pep440

import (
	"fmt"
	"strings"
)

// Specifier is a single version clause such as ">=1.0" or "==2.1.*".
type Specifier struct {
	Op      string
	Version string
}

// Specifiers is a comma-separated set of clauses, all of which must hold.
type Specifiers []Specifier

var specifierOps = []string{"===", "==", "!=", "<=", ">=", "~=", "<", ">"}

// ParseSpecifiers parses a comma-separated specifier set such as
// ">=1.0, <2.0". An empty string yields an empty set.
func ParseSpecifiers(s string) (Specifiers, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	var specs Specifiers
	for _, clause := range strings.Split(s, ",") {
		spec, err := parseSpecifier(clause)
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseSpecifier(clause string) (Specifier, error) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return Specifier{}, fmt.Errorf("empty specifier clause")
	}

	var op string
	for _, candidate := range specifierOps {
		if strings.HasPrefix(clause, candidate) {
			op = candidate
			break
		}
	}
	if op == "" {
		return Specifier{}, fmt.Errorf("specifier %q: missing comparison operator", clause)
	}

	ver := strings.TrimSpace(clause[len(op):])
	if ver == "" {
		return Specifier{}, fmt.Errorf("specifier %q: missing version", clause)
	}

	switch op {
	case "===":
		// Arbitrary equality takes the version text verbatim.
	case "==", "!=":
		if strings.HasSuffix(ver, ".*") {
			if !IsValid(strings.TrimSuffix(ver, ".*")) {
				return Specifier{}, fmt.Errorf("specifier %q: invalid version", clause)
			}
		} else if !IsValid(ver) {
			return Specifier{}, fmt.Errorf("specifier %q: invalid version", clause)
		}
	case "~=":
		v, err := Parse(ver)
		if err != nil {
			return Specifier{}, fmt.Errorf("specifier %q: %w", clause, err)
		}
		if len(v.Release) < 2 {
			return Specifier{}, fmt.Errorf("specifier %q: ~= requires at least two release segments", clause)
		}
		if v.HasLocal() {
			return Specifier{}, fmt.Errorf("specifier %q: ~= cannot use a local version", clause)
		}
	default:
		if !IsValid(ver) {
			return Specifier{}, fmt.Errorf("specifier %q: invalid version", clause)
		}
	}

	return Specifier{Op: op, Version: ver}, nil
}

// String renders the set in normalized "op version" form.
func (ss Specifiers) String() string {
	parts := make([]string, len(ss))
	for i, s := range ss {
		parts[i] = s.Op + s.Version
	}
	return strings.Join(parts, ",")
}

// Match reports whether v satisfies every clause in the set. An empty set
// matches everything.
func (ss Specifiers) Match(v Version) (bool, error) {
	for _, s := range ss {
		ok, err := s.Match(v)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// Match reports whether v satisfies the clause.
func (s Specifier) Match(v Version) (bool, error) {
	switch s.Op {
	case "===":
		return strings.TrimSpace(s.Version) == v.original, nil
	case "==":
		return matchEqual(s.Version, v)
	case "!=":
		ok, err := matchEqual(s.Version, v)
		return !ok, err
	case "~=":
		return matchCompatible(s.Version, v)
	case "<=", ">=", "<", ">":
		return matchOrdered(s.Op, s.Version, v)
	}
	return false, fmt.Errorf("unknown operator %q", s.Op)
}

func matchEqual(spec string, v Version) (bool, error) {
	if strings.HasSuffix(spec, ".*") {
		return matchPrefix(strings.TrimSuffix(spec, ".*"), v)
	}
	sv, err := Parse(spec)
	if err != nil {
		return false, err
	}
	// A clause without a local segment matches any local variant of the
	// same version; a clause with one requires it exactly.
	cand := v
	if !sv.HasLocal() {
		cand.Local = nil
	}
	return cand.Compare(sv) == 0, nil
}

// matchPrefix implements wildcard matching for "==X.Y.*": the candidate's
// epoch must match and its release must start with the clause's release,
// padding with zeros as needed.
func matchPrefix(spec string, v Version) (bool, error) {
	sv, err := Parse(spec)
	if err != nil {
		return false, err
	}
	if v.Epoch != sv.Epoch {
		return false, nil
	}
	for i, want := range sv.Release {
		got := 0
		if i < len(v.Release) {
			got = v.Release[i]
		}
		if got != want {
			return false, nil
		}
	}
	return true, nil
}

// matchCompatible implements "~= X.Y[.Z]": at least the named version, and
// matching it with the final release segment replaced by a wildcard.
func matchCompatible(spec string, v Version) (bool, error) {
	sv, err := Parse(spec)
	if err != nil {
		return false, err
	}

	ge, err := matchOrdered(">=", spec, v)
	if err != nil || !ge {
		return ge, err
	}

	prefix := sv.BaseVersion()
	prefix.Release = prefix.Release[:len(prefix.Release)-1]
	return matchPrefix(prefix.String(), v)
}

func matchOrdered(op, spec string, v Version) (bool, error) {
	sv, err := Parse(spec)
	if err != nil {
		return false, err
	}

	// Ordered comparisons ignore the candidate's local segment.
	cand := v
	cand.Local = nil
	c := cand.Compare(sv)

	switch op {
	case "<=":
		return c <= 0, nil
	case ">=":
		return c >= 0, nil
	case ">":
		if c <= 0 {
			return false, nil
		}
		// A post release does not satisfy ">" of its own base version
		// unless the clause names a post release itself.
		if !sv.IsPostrelease() && cand.IsPostrelease() &&
			cand.BaseVersion().Compare(sv.BaseVersion()) == 0 {
			return false, nil
		}
		return true, nil
	case "<":
		if c >= 0 {
			return false, nil
		}
		// A pre-release does not satisfy "<" of its own base version
		// unless the clause names a pre-release itself.
		if !sv.IsPrerelease() && cand.IsPrerelease() &&
			cand.BaseVersion().Compare(sv.BaseVersion()) == 0 {
			return false, nil
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown operator %q", op)
}

// CompareStrings parses both operands as versions and compares them.
func CompareStrings(a, b string) (int, error) {
	av, err := Parse(a)
	if err != nil {
		return 0, err
	}
	bv, err := Parse(b)
	if err != nil {
		return 0, err
	}
	return av.Compare(bv), nil
}
