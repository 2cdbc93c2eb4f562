// Package req parses single requirement expressions of the form
//
//	<name>[<extras>][<version-specifiers>][ @ <url>][; <marker>]
package req

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/frederic-klein/yarp/internal/marker"
	"github.com/frederic-klein/yarp/internal/pep440"
)

// Requirement is one parsed requirement expression.
type Requirement struct {
	Name       string
	Extras     []string
	Specifiers pep440.Specifiers
	URL        string
	Marker     *marker.Marker
	Hashes     []string
}

var (
	nameRe   = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)`)
	normRe   = regexp.MustCompile(`[-_.]+`)
	extrasRe = regexp.MustCompile(`^\[([^\]]*)\]`)
)

// NormalizeName canonicalizes a package name: lowercase, with runs of
// "-", "_", and "." collapsed to a single dash.
func NormalizeName(name string) string {
	return strings.ToLower(normRe.ReplaceAllString(name, "-"))
}

// Parse parses a requirement expression.
func Parse(line string) (Requirement, error) {
	var r Requirement

	expr, markerPart, err := splitMarker(line)
	if err != nil {
		return r, err
	}
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return r, fmt.Errorf("empty requirement")
	}

	m := nameRe.FindString(expr)
	if m == "" {
		return r, fmt.Errorf("requirement %q: invalid package name", strings.TrimSpace(line))
	}
	r.Name = m
	rest := strings.TrimSpace(expr[len(m):])

	if em := extrasRe.FindStringSubmatch(rest); em != nil {
		for _, e := range strings.Split(em[1], ",") {
			e = strings.TrimSpace(e)
			if e == "" {
				continue
			}
			if !nameRe.MatchString(e) || nameRe.FindString(e) != e {
				return r, fmt.Errorf("requirement %q: invalid extra %q", r.Name, e)
			}
			r.Extras = append(r.Extras, e)
		}
		rest = strings.TrimSpace(rest[len(em[0]):])
	}

	if strings.HasPrefix(rest, "@") {
		r.URL = strings.TrimSpace(rest[1:])
		if r.URL == "" {
			return r, fmt.Errorf("requirement %q: missing URL after '@'", r.Name)
		}
	} else if rest != "" {
		// Specifiers may be wrapped in parentheses.
		if strings.HasPrefix(rest, "(") && strings.HasSuffix(rest, ")") {
			rest = rest[1 : len(rest)-1]
		}
		specs, err := pep440.ParseSpecifiers(rest)
		if err != nil {
			return r, fmt.Errorf("requirement %q: %w", r.Name, err)
		}
		r.Specifiers = specs
	}

	if markerPart != "" {
		mk, err := marker.Parse(markerPart)
		if err != nil {
			return r, fmt.Errorf("requirement %q: %w", r.Name, err)
		}
		r.Marker = mk
	}

	return r, nil
}

// splitMarker splits a line at the first ';' that is not inside a quoted
// string. The marker portion may be empty.
func splitMarker(line string) (expr, markerPart string, err error) {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == ';':
			mk := strings.TrimSpace(line[i+1:])
			if mk == "" {
				return "", "", fmt.Errorf("requirement %q: empty marker after ';'", strings.TrimSpace(line))
			}
			return line[:i], mk, nil
		}
	}
	if quote != 0 {
		return "", "", fmt.Errorf("requirement %q: unterminated string", strings.TrimSpace(line))
	}
	return line, "", nil
}

// Applies reports whether the requirement's marker holds in env. A
// requirement without a marker always applies.
func (r Requirement) Applies(env marker.Environment) (bool, error) {
	return r.Marker.Eval(env)
}

// String renders the requirement in canonical single-line form: normalized
// name, sorted extras, normalized specifiers and marker.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(NormalizeName(r.Name))

	if len(r.Extras) > 0 {
		extras := make([]string, len(r.Extras))
		for i, e := range r.Extras {
			extras[i] = strings.ToLower(e)
		}
		sort.Strings(extras)
		b.WriteByte('[')
		b.WriteString(strings.Join(extras, ","))
		b.WriteByte(']')
	}

	if r.URL != "" {
		b.WriteString(" @ ")
		b.WriteString(r.URL)
	} else if len(r.Specifiers) > 0 {
		b.WriteString(r.Specifiers.String())
	}

	if r.Marker != nil {
		b.WriteString(" ; ")
		b.WriteString(r.Marker.String())
	}

	return b.String()
}
