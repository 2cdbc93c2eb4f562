package reqfile

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"sort"
	"strings"

	"github.com/frederic-klein/yarp/internal/fetch"
	"github.com/frederic-klein/yarp/internal/marker"
	"github.com/frederic-klein/yarp/internal/req"
)

// Manifest is the fully loaded view of a requirements file with all -r and
// -c includes resolved.
type Manifest struct {
	Requirements []Entry
	Constraints  []Entry
	Editables    []Editable
	Options      Options
	Problems     []Problem
}

// Loader resolves requirements files recursively. Local includes resolve
// relative to the including file; http(s) includes are fetched through the
// fetcher.
type Loader struct {
	fetcher *fetch.Fetcher
	loading map[string]bool
	loaded  map[string]bool
	logFn   func(string, ...interface{})
}

// NewLoader creates a loader. fetcher may be nil, in which case URL
// includes are reported as problems.
func NewLoader(fetcher *fetch.Fetcher, verbose bool) *Loader {
	return &Loader{
		fetcher: fetcher,
		loading: make(map[string]bool),
		loaded:  make(map[string]bool),
		logFn: func(format string, args ...interface{}) {
			if verbose {
				fmt.Printf(format+"\n", args...)
			}
		},
	}
}

// Load parses the file at path (a local path or http(s) URL) and every
// file it includes, and applies constraints to the collected requirements.
func (l *Loader) Load(ctx context.Context, path string) (*Manifest, error) {
	m := &Manifest{}
	if err := l.load(ctx, m, path, "", 0, false); err != nil {
		return nil, err
	}
	m.applyConstraints()
	m.checkDuplicates()
	return m, nil
}

func (l *Loader) load(ctx context.Context, m *Manifest, target, from string, fromLine int, asConstraint bool) error {
	resolved, err := resolveTarget(target, from)
	if err != nil {
		return err
	}

	// A file on the current include chain is a genuine cycle. A file
	// reached again on a different chain (diamond includes, a reused
	// loader) has already contributed and is silently skipped.
	if l.loading[resolved] {
		m.Problems = append(m.Problems, Problem{
			File: from,
			Line: fromLine,
			Msg:  fmt.Sprintf("include cycle: %s already loaded", target),
		})
		return nil
	}
	if l.loaded[resolved] {
		l.logFn("Skipping %s: already loaded", resolved)
		return nil
	}
	l.loading[resolved] = true
	defer delete(l.loading, resolved)
	l.loaded[resolved] = true

	localPath := resolved
	if isURL(resolved) {
		if l.fetcher == nil {
			m.Problems = append(m.Problems, Problem{
				File: from,
				Line: fromLine,
				Msg:  fmt.Sprintf("remote include %s: no fetcher configured", target),
			})
			return nil
		}
		l.logFn("Fetching %s", resolved)
		localPath, err = l.fetcher.Fetch(ctx, resolved)
		if err != nil {
			return fmt.Errorf("fetching include: %w", err)
		}
	}

	l.logFn("Parsing %s", resolved)
	f, err := ParseFile(localPath)
	if err != nil {
		return err
	}
	// Problem reports should name the file as referenced, not the cache
	// path a remote include landed in.
	if localPath != resolved {
		for i := range f.Problems {
			f.Problems[i].File = resolved
		}
		for i := range f.Requirements {
			f.Requirements[i].File = resolved
		}
	}

	m.Problems = append(m.Problems, f.Problems...)
	if asConstraint {
		m.Constraints = append(m.Constraints, f.Requirements...)
	} else {
		m.Requirements = append(m.Requirements, f.Requirements...)
		m.Editables = append(m.Editables, f.Editables...)
		mergeOptions(&m.Options, f.Options)
	}

	for _, inc := range f.Includes {
		if err := l.load(ctx, m, inc.Target, resolved, inc.Line, asConstraint); err != nil {
			return err
		}
	}
	for _, inc := range f.Constraints {
		if err := l.load(ctx, m, inc.Target, resolved, inc.Line, true); err != nil {
			return err
		}
	}

	return nil
}

// resolveTarget resolves an include target against the file that
// referenced it.
func resolveTarget(target, from string) (string, error) {
	if isURL(target) {
		return target, nil
	}
	if from == "" {
		return filepath.Clean(target), nil
	}
	if isURL(from) {
		base, err := url.Parse(from)
		if err != nil {
			return "", fmt.Errorf("resolving include %q: %w", target, err)
		}
		ref, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("resolving include %q: %w", target, err)
		}
		return base.ResolveReference(ref).String(), nil
	}
	if filepath.IsAbs(target) {
		return target, nil
	}
	return filepath.Join(filepath.Dir(from), target), nil
}

func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func mergeOptions(dst *Options, src Options) {
	if src.IndexURL != "" {
		dst.IndexURL = src.IndexURL
	}
	dst.ExtraIndexURLs = append(dst.ExtraIndexURLs, src.ExtraIndexURLs...)
	dst.FindLinks = append(dst.FindLinks, src.FindLinks...)
	dst.NoIndex = dst.NoIndex || src.NoIndex
}

// applyConstraints narrows each requirement by the specifiers of any
// constraint with the same normalized name.
func (m *Manifest) applyConstraints() {
	if len(m.Constraints) == 0 {
		return
	}
	byName := make(map[string][]Entry)
	for _, c := range m.Constraints {
		name := req.NormalizeName(c.Requirement.Name)
		byName[name] = append(byName[name], c)
	}
	for i := range m.Requirements {
		name := req.NormalizeName(m.Requirements[i].Requirement.Name)
		for _, c := range byName[name] {
			m.Requirements[i].Requirement.Specifiers = append(
				m.Requirements[i].Requirement.Specifiers,
				c.Requirement.Specifiers...)
		}
	}
}

// checkDuplicates reports requirements declared more than once. Two lines
// for the same package with disjoint markers are commonplace (for example
// per-platform pins), so only entries whose markers render identically are
// flagged.
func (m *Manifest) checkDuplicates() {
	seen := make(map[string]Entry)
	for _, e := range m.Requirements {
		key := req.NormalizeName(e.Requirement.Name) + ";" + e.Requirement.Marker.String()
		if prev, ok := seen[key]; ok {
			m.Problems = append(m.Problems, Problem{
				File: e.File,
				Line: e.Line,
				Msg: fmt.Sprintf("duplicate requirement %q (first declared at %s:%d)",
					e.Requirement.Name, prev.File, prev.Line),
			})
			continue
		}
		seen[key] = e
	}
}

// Filter returns the requirements whose markers hold in env, sorted by
// normalized name.
func (m *Manifest) Filter(env marker.Environment) ([]Entry, error) {
	var out []Entry
	for _, e := range m.Requirements {
		ok, err := e.Requirement.Applies(env)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", e.File, e.Line, err)
		}
		if ok {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return req.NormalizeName(out[i].Requirement.Name) < req.NormalizeName(out[j].Requirement.Name)
	})
	return out, nil
}
