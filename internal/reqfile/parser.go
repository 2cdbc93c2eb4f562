// Package reqfile parses pip-style requirements files: one requirement
// expression per line, comments, line continuations, global options, and
// recursive -r / -c includes.
package reqfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/frederic-klein/yarp/internal/req"
)

// Entry is one requirement together with where it was declared.
type Entry struct {
	Requirement req.Requirement
	File        string
	Line        int
}

// Editable is an -e/--editable line, recorded verbatim.
type Editable struct {
	Target string
	File   string
	Line   int
}

// Include is a -r or -c reference to another requirements file.
type Include struct {
	Target string
	File   string
	Line   int
}

// Problem is a recoverable defect found while parsing. Parsing continues
// past problems so a single run reports them all.
type Problem struct {
	File string
	Line int
	Msg  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s:%d: %s", p.File, p.Line, p.Msg)
}

// Options are the installer-level options a requirements file may carry.
type Options struct {
	IndexURL       string
	ExtraIndexURLs []string
	FindLinks      []string
	NoIndex        bool
}

// File is the parse result for a single requirements file, before include
// resolution.
type File struct {
	Path         string
	Requirements []Entry
	Editables    []Editable
	Includes     []Include
	Constraints  []Include
	Options      Options
	Problems     []Problem
}

var envVarRe = regexp.MustCompile(`\$\{([A-Z0-9_]+)\}`)

// ParseFile parses the requirements file at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening requirements file: %w", err)
	}
	defer f.Close()
	return ParseReader(f, path)
}

// ParseReader parses a requirements file from r. path is used in problem
// reports and for resolving relative includes.
func ParseReader(r io.Reader, path string) (*File, error) {
	result := &File{Path: path}

	scanner := bufio.NewScanner(r)
	lineno := 0
	startLine := 0
	var pending strings.Builder

	for scanner.Scan() {
		lineno++
		raw := scanner.Text()

		if pending.Len() == 0 {
			startLine = lineno
		}

		// Backslash continuations join lines before anything else.
		if trimmed := strings.TrimRight(raw, " \t"); strings.HasSuffix(trimmed, `\`) {
			pending.WriteString(strings.TrimSuffix(trimmed, `\`))
			continue
		}
		pending.WriteString(raw)
		line := pending.String()
		pending.Reset()

		result.parseLine(line, startLine)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading requirements file: %w", err)
	}
	if pending.Len() > 0 {
		result.parseLine(pending.String(), startLine)
	}

	return result, nil
}

func (f *File) parseLine(line string, lineno int) {
	line = stripComment(line)
	line = expandEnvVars(line)
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	if strings.HasPrefix(line, "-") {
		f.parseOption(line, lineno)
		return
	}

	expr, hashes, err := splitHashOptions(line)
	if err != nil {
		f.problemf(lineno, "%v", err)
		return
	}

	r, err := req.Parse(expr)
	if err != nil {
		f.problemf(lineno, "%v", err)
		return
	}
	r.Hashes = hashes
	f.Requirements = append(f.Requirements, Entry{Requirement: r, File: f.Path, Line: lineno})
}

func (f *File) parseOption(line string, lineno int) {
	flag, arg := splitFlag(line)

	switch flag {
	case "-r", "--requirement":
		if arg == "" {
			f.problemf(lineno, "%s: missing file argument", flag)
			return
		}
		f.Includes = append(f.Includes, Include{Target: arg, File: f.Path, Line: lineno})
	case "-c", "--constraint":
		if arg == "" {
			f.problemf(lineno, "%s: missing file argument", flag)
			return
		}
		f.Constraints = append(f.Constraints, Include{Target: arg, File: f.Path, Line: lineno})
	case "-e", "--editable":
		if arg == "" {
			f.problemf(lineno, "%s: missing target argument", flag)
			return
		}
		f.Editables = append(f.Editables, Editable{Target: arg, File: f.Path, Line: lineno})
	case "-i", "--index-url":
		f.Options.IndexURL = arg
	case "--extra-index-url":
		f.Options.ExtraIndexURLs = append(f.Options.ExtraIndexURLs, arg)
	case "-f", "--find-links":
		f.Options.FindLinks = append(f.Options.FindLinks, arg)
	case "--no-index":
		f.Options.NoIndex = true
	default:
		f.problemf(lineno, "unknown option %q", flag)
	}
}

func (f *File) problemf(lineno int, format string, args ...interface{}) {
	f.Problems = append(f.Problems, Problem{
		File: f.Path,
		Line: lineno,
		Msg:  fmt.Sprintf(format, args...),
	})
}

// splitFlag splits "-r file", "--requirement file", and
// "--requirement=file" into flag and argument.
func splitFlag(line string) (flag, arg string) {
	if idx := strings.IndexAny(line, " \t"); idx != -1 {
		flag, arg = line[:idx], strings.TrimSpace(line[idx+1:])
	} else {
		flag = line
	}
	if strings.HasPrefix(flag, "--") {
		if idx := strings.Index(flag, "="); idx != -1 {
			flag, arg = flag[:idx], flag[idx+1:]
		}
	}
	return flag, arg
}

// splitHashOptions splits trailing per-requirement "--hash=algo:digest"
// options off a requirement line.
func splitHashOptions(line string) (expr string, hashes []string, err error) {
	idx := indexOutsideQuotes(line, " --")
	if idx == -1 {
		return line, nil, nil
	}

	expr = line[:idx]
	for _, tok := range strings.Fields(line[idx:]) {
		val, ok := strings.CutPrefix(tok, "--hash=")
		if !ok {
			return "", nil, fmt.Errorf("unexpected per-requirement option %q", tok)
		}
		if !strings.Contains(val, ":") {
			return "", nil, fmt.Errorf("malformed hash %q, want algorithm:digest", val)
		}
		hashes = append(hashes, val)
	}
	return expr, hashes, nil
}

func indexOutsideQuotes(s, sub string) int {
	var quote byte
	for i := 0; i+len(sub) <= len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		default:
			if strings.HasPrefix(s[i:], sub) {
				return i
			}
		}
	}
	return -1
}

// stripComment removes "#" comments: a whole comment line, or a trailing
// comment preceded by whitespace. A "#" inside a requirement (e.g. a URL
// fragment) is kept.
func stripComment(line string) string {
	trimmed := strings.TrimSpace(line)
	if strings.HasPrefix(trimmed, "#") {
		return ""
	}
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
		case c == '#' && i > 0 && (line[i-1] == ' ' || line[i-1] == '\t'):
			return line[:i]
		}
	}
	return line
}

// expandEnvVars substitutes ${VAR} references with values from the
// process environment. Unset variables expand to the empty string.
func expandEnvVars(line string) string {
	return envVarRe.ReplaceAllStringFunc(line, func(m string) string {
		name := m[2 : len(m)-1]
		return os.Getenv(name)
	})
}
