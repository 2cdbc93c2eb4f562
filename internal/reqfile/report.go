package reqfile

import (
	"fmt"

	"github.com/frederic-klein/yarp/internal/req"
)

// Report is a serialization-friendly view of a loaded manifest, used by
// the report command's YAML output.
type Report struct {
	Requirements []ReportEntry  `yaml:"requirements"`
	Editables    []string       `yaml:"editables,omitempty"`
	Options      *ReportOptions `yaml:"options,omitempty"`
	Problems     []string       `yaml:"problems,omitempty"`
}

// ReportEntry is one requirement in a report.
type ReportEntry struct {
	Name       string   `yaml:"name"`
	Extras     []string `yaml:"extras,omitempty"`
	Specifiers string   `yaml:"specifiers,omitempty"`
	URL        string   `yaml:"url,omitempty"`
	Marker     string   `yaml:"marker,omitempty"`
	Hashes     []string `yaml:"hashes,omitempty"`
	Source     string   `yaml:"source"`
}

// ReportOptions mirrors Options for serialization.
type ReportOptions struct {
	IndexURL       string   `yaml:"index_url,omitempty"`
	ExtraIndexURLs []string `yaml:"extra_index_urls,omitempty"`
	FindLinks      []string `yaml:"find_links,omitempty"`
	NoIndex        bool     `yaml:"no_index,omitempty"`
}

// NewReport builds a report from a loaded manifest.
func NewReport(m *Manifest) *Report {
	r := &Report{}

	for _, e := range m.Requirements {
		r.Requirements = append(r.Requirements, ReportEntry{
			Name:       req.NormalizeName(e.Requirement.Name),
			Extras:     e.Requirement.Extras,
			Specifiers: e.Requirement.Specifiers.String(),
			URL:        e.Requirement.URL,
			Marker:     e.Requirement.Marker.String(),
			Hashes:     e.Requirement.Hashes,
			Source:     fmt.Sprintf("%s:%d", e.File, e.Line),
		})
	}

	for _, ed := range m.Editables {
		r.Editables = append(r.Editables, ed.Target)
	}

	if hasOptions(m.Options) {
		r.Options = &ReportOptions{
			IndexURL:       m.Options.IndexURL,
			ExtraIndexURLs: m.Options.ExtraIndexURLs,
			FindLinks:      m.Options.FindLinks,
			NoIndex:        m.Options.NoIndex,
		}
	}

	for _, p := range m.Problems {
		r.Problems = append(r.Problems, p.String())
	}

	return r
}

func hasOptions(o Options) bool {
	return o.IndexURL != "" || len(o.ExtraIndexURLs) > 0 || len(o.FindLinks) > 0 || o.NoIndex
}
