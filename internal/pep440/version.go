// Package pep440 implements PEP 440 version parsing, ordering, and
// specifier matching for Python package versions.
package pep440

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Version is a parsed PEP 440 version.
type Version struct {
	Epoch   int
	Release []int
	Pre     *PreRelease
	Post    *int
	Dev     *int
	Local   []localSegment

	original string
}

// PreRelease is a pre-release segment. Label is one of "a", "b", "rc"
// after normalization.
type PreRelease struct {
	Label string
	Num   int
}

type localSegment struct {
	str   string
	num   int
	isNum bool
}

// Canonical PEP 440 grammar, including the alternate spellings the
// normalization rules fold away (alpha/beta/c/pre/preview, post/rev/r,
// -/_/. separators, v prefix).
var versionRe = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?P<pre>[-_\.]?(?P<preL>alpha|a|beta|b|preview|pre|c|rc)[-_\.]?(?P<preN>[0-9]+)?)?` +
	`(?P<post>(?:-(?P<postN1>[0-9]+))|(?:[-_\.]?(?:post|rev|r)[-_\.]?(?P<postN2>[0-9]+)?))?` +
	`(?P<dev>[-_\.]?dev[-_\.]?(?P<devN>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-zA-Z0-9]+(?:[-_\.][a-zA-Z0-9]+)*))?` +
	`\s*$`)

// Parse parses a version string according to PEP 440.
func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	group := func(name string) string {
		return m[versionRe.SubexpIndex(name)]
	}

	v := Version{original: strings.TrimSpace(s)}

	if e := group("epoch"); e != "" {
		v.Epoch, _ = strconv.Atoi(e)
	}

	for _, part := range strings.Split(group("release"), ".") {
		n, err := strconv.Atoi(part)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q", s)
		}
		v.Release = append(v.Release, n)
	}

	if group("pre") != "" {
		num := 0
		if n := group("preN"); n != "" {
			num, _ = strconv.Atoi(n)
		}
		v.Pre = &PreRelease{Label: normalizePreLabel(group("preL")), Num: num}
	}

	if group("post") != "" {
		n := 0
		if n1 := group("postN1"); n1 != "" {
			n, _ = strconv.Atoi(n1)
		} else if n2 := group("postN2"); n2 != "" {
			n, _ = strconv.Atoi(n2)
		}
		v.Post = &n
	}

	if group("dev") != "" {
		n := 0
		if d := group("devN"); d != "" {
			n, _ = strconv.Atoi(d)
		}
		v.Dev = &n
	}

	if l := group("local"); l != "" {
		for _, part := range strings.FieldsFunc(strings.ToLower(l), func(r rune) bool {
			return r == '-' || r == '_' || r == '.'
		}) {
			if n, err := strconv.Atoi(part); err == nil {
				v.Local = append(v.Local, localSegment{num: n, isNum: true})
			} else {
				v.Local = append(v.Local, localSegment{str: part})
			}
		}
	}

	return v, nil
}

// MustParse parses a version and panics on failure. For tests and constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValid reports whether s parses as a PEP 440 version.
func IsValid(s string) bool {
	return versionRe.MatchString(s)
}

func normalizePreLabel(l string) string {
	switch strings.ToLower(l) {
	case "a", "alpha":
		return "a"
	case "b", "beta":
		return "b"
	default: // c, pre, preview, rc
		return "rc"
	}
}

// String returns the normalized form of the version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		fmt.Fprintf(&b, "%d!", v.Epoch)
	}
	for i, r := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(r))
	}
	if v.Pre != nil {
		fmt.Fprintf(&b, "%s%d", v.Pre.Label, v.Pre.Num)
	}
	if v.Post != nil {
		fmt.Fprintf(&b, ".post%d", *v.Post)
	}
	if v.Dev != nil {
		fmt.Fprintf(&b, ".dev%d", *v.Dev)
	}
	if len(v.Local) > 0 {
		b.WriteByte('+')
		for i, seg := range v.Local {
			if i > 0 {
				b.WriteByte('.')
			}
			if seg.isNum {
				b.WriteString(strconv.Itoa(seg.num))
			} else {
				b.WriteString(seg.str)
			}
		}
	}
	return b.String()
}

// IsPrerelease reports whether the version has a pre-release or dev segment.
func (v Version) IsPrerelease() bool {
	return v.Pre != nil || v.Dev != nil
}

// IsPostrelease reports whether the version has a post-release segment.
func (v Version) IsPostrelease() bool {
	return v.Post != nil
}

// HasLocal reports whether the version carries a local segment.
func (v Version) HasLocal() bool {
	return len(v.Local) > 0
}

// BaseVersion returns the epoch and release portion, dropping pre, post,
// dev, and local segments.
func (v Version) BaseVersion() Version {
	return Version{Epoch: v.Epoch, Release: v.Release}
}

// Compare returns -1, 0, or 1 ordering v against o per PEP 440.
func (v Version) Compare(o Version) int {
	if v.Epoch != o.Epoch {
		return cmpInt(v.Epoch, o.Epoch)
	}
	if c := cmpRelease(v.Release, o.Release); c != 0 {
		return c
	}
	if c := cmpPre(v, o); c != 0 {
		return c
	}
	if c := cmpOptional(v.Post, o.Post, -1); c != 0 {
		return c
	}
	if c := cmpOptional(v.Dev, o.Dev, 1); c != 0 {
		return c
	}
	return cmpLocal(v.Local, o.Local)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// cmpRelease compares release tuples with implicit zero padding, so
// 1.0 == 1.0.0.
func cmpRelease(a, b []int) int {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		av, bv := 0, 0
		if i < len(a) {
			av = a[i]
		}
		if i < len(b) {
			bv = b[i]
		}
		if c := cmpInt(av, bv); c != 0 {
			return c
		}
	}
	return 0
}

// preKey ranks the pre-release segment. A version with only a dev segment
// sorts before any pre-release of the same release; a final release sorts
// after all pre-releases.
func preKey(v Version) (rank int, label string, num int) {
	switch {
	case v.Pre == nil && v.Post == nil && v.Dev != nil:
		return -1, "", 0
	case v.Pre == nil:
		return 1, "", 0
	default:
		return 0, v.Pre.Label, v.Pre.Num
	}
}

func cmpPre(a, b Version) int {
	ar, al, an := preKey(a)
	br, bl, bn := preKey(b)
	if ar != br {
		return cmpInt(ar, br)
	}
	if al != bl {
		if al < bl {
			return -1
		}
		return 1
	}
	return cmpInt(an, bn)
}

// cmpOptional compares optional numeric segments, treating absence as
// missing-rank (-1 for post: no post sorts first; +1 for dev: no dev
// sorts last).
func cmpOptional(a, b *int, missing int) int {
	ar, av := missing, 0
	if a != nil {
		ar, av = 0, *a
	}
	br, bv := missing, 0
	if b != nil {
		br, bv = 0, *b
	}
	if ar != br {
		return cmpInt(ar, br)
	}
	return cmpInt(av, bv)
}

func cmpLocal(a, b []localSegment) int {
	if len(a) == 0 || len(b) == 0 {
		// No local segment sorts before any local segment.
		return cmpInt(boolToInt(len(a) > 0), boolToInt(len(b) > 0))
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := cmpLocalSegment(a[i], b[i]); c != 0 {
			return c
		}
	}
	return cmpInt(len(a), len(b))
}

// Numeric local segments sort after alphanumeric ones; numbers compare
// numerically, strings lexically.
func cmpLocalSegment(a, b localSegment) int {
	if a.isNum != b.isNum {
		if a.isNum {
			return 1
		}
		return -1
	}
	if a.isNum {
		return cmpInt(a.num, b.num)
	}
	return strings.Compare(a.str, b.str)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
