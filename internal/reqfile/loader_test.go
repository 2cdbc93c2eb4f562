package reqfile

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/frederic-klein/yarp/internal/fetch"
	"github.com/frederic-klein/yarp/internal/marker"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestLoader_Load_Includes(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"requirements.txt": "requests==2.31.0\n-r sub/dev.txt\n",
		"sub/dev.txt":      "pytest>=7.0\n-r tools.txt\n",
		"sub/tools.txt":    "black==23.3.0\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(m.Problems) != 0 {
		t.Fatalf("unexpected problems: %v", m.Problems)
	}

	want := []string{"requests==2.31.0", "pytest>=7.0", "black==23.3.0"}
	if len(m.Requirements) != len(want) {
		t.Fatalf("got %d requirements, want %d", len(m.Requirements), len(want))
	}
	for i, w := range want {
		if got := m.Requirements[i].Requirement.String(); got != w {
			t.Errorf("requirement %d = %q, want %q", i, got, w)
		}
	}
}

func TestLoader_Load_Cycle(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.txt": "pkg-a==1.0\n-r b.txt\n",
		"b.txt": "pkg-b==1.0\n-r a.txt\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(m.Requirements) != 2 {
		t.Errorf("got %d requirements, want 2", len(m.Requirements))
	}
	if len(m.Problems) != 1 {
		t.Fatalf("got %d problems, want 1 cycle report: %v", len(m.Problems), m.Problems)
	}
}

func TestLoader_Load_DiamondInclude(t *testing.T) {
	// a.txt and b.txt both include common.txt. That is valid input, not
	// a cycle: common.txt contributes once and no problem is reported.
	dir := writeFiles(t, map[string]string{
		"top.txt":    "-r a.txt\n-r b.txt\n",
		"a.txt":      "pkg-a==1.0\n-r common.txt\n",
		"b.txt":      "pkg-b==1.0\n-r common.txt\n",
		"common.txt": "shared==1.0\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "top.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, p := range m.Problems {
		t.Errorf("unexpected problem: %s", p)
	}
	want := []string{"pkg-a==1.0", "shared==1.0", "pkg-b==1.0"}
	if len(m.Requirements) != len(want) {
		t.Fatalf("got %d requirements, want %d: %+v", len(m.Requirements), len(want), m.Requirements)
	}
	for i, w := range want {
		if got := m.Requirements[i].Requirement.String(); got != w {
			t.Errorf("requirement %d = %q, want %q", i, got, w)
		}
	}
}

func TestLoader_Reuse_AcrossTopLevelFiles(t *testing.T) {
	// A loader used for several top-level files (as the CLI does) must
	// not report a file loaded for an earlier root as a cycle.
	dir := writeFiles(t, map[string]string{
		"requirements.txt":     "requests==2.31.0\n",
		"dev-requirements.txt": "-r requirements.txt\npytest>=7.0\n",
	})

	loader := NewLoader(nil, false)
	if _, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt")); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	m, err := loader.Load(context.Background(), filepath.Join(dir, "dev-requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	for _, p := range m.Problems {
		t.Errorf("unexpected problem: %s", p)
	}
	if len(m.Requirements) != 1 || m.Requirements[0].Requirement.String() != "pytest>=7.0" {
		t.Errorf("Requirements = %+v, want just pytest>=7.0", m.Requirements)
	}
}

func TestLoader_Load_Constraints(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"requirements.txt": "-c constraints.txt\nrequests\nnumpy>=1.21\n",
		"constraints.txt":  "requests==2.31.0\nunrelated==9.9\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(m.Requirements) != 2 {
		t.Fatalf("got %d requirements, want 2", len(m.Requirements))
	}
	// The constraint narrows requests; the unrelated constraint adds
	// nothing.
	if got := m.Requirements[0].Requirement.String(); got != "requests==2.31.0" {
		t.Errorf("constrained requirement = %q, want %q", got, "requests==2.31.0")
	}
	if got := m.Requirements[1].Requirement.String(); got != "numpy>=1.21" {
		t.Errorf("requirement = %q, want %q", got, "numpy>=1.21")
	}
}

func TestLoader_Load_Duplicates(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"requirements.txt": "requests==2.31.0\nRequests==2.30.0\n" +
			"torch==1.12.1; platform_system == \"Linux\"\n" +
			"torch==1.13.0; platform_system == \"Windows\"\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// requests/Requests collide; the two torch lines have different
	// markers and are fine.
	if len(m.Problems) != 1 {
		t.Fatalf("got %d problems, want 1: %v", len(m.Problems), m.Problems)
	}
	if m.Problems[0].Line != 2 {
		t.Errorf("duplicate reported at line %d, want 2", m.Problems[0].Line)
	}
}

func TestLoader_Load_RemoteInclude(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-pkg==1.2.3\n"))
	}))
	defer server.Close()

	dir := writeFiles(t, map[string]string{
		"requirements.txt": "local-pkg==1.0\n-r " + server.URL + "/shared.txt\n",
	})

	fetcher := fetch.NewFetcher(2, t.TempDir())
	loader := NewLoader(fetcher, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(m.Requirements) != 2 {
		t.Fatalf("got %d requirements, want 2: %+v", len(m.Requirements), m.Requirements)
	}
	if got := m.Requirements[1].Requirement.String(); got != "remote-pkg==1.2.3" {
		t.Errorf("remote requirement = %q", got)
	}
	// Problems and entries from the remote file name the URL, not the
	// cache path.
	if got := m.Requirements[1].File; got != server.URL+"/shared.txt" {
		t.Errorf("remote requirement file = %q, want %q", got, server.URL+"/shared.txt")
	}
}

func TestLoader_Load_RemoteWithoutFetcher(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"requirements.txt": "-r https://example.invalid/reqs.txt\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(m.Problems) != 1 {
		t.Fatalf("got %d problems, want 1: %v", len(m.Problems), m.Problems)
	}
}

func TestManifest_Filter(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"requirements.txt": "zuul==1.0\n" +
			"docker>=6.0; platform_system != \"Windows\"\n" +
			"pywin32; platform_system == \"Windows\"\n" +
			"apple-thing; sys_platform == \"darwin\"\n",
	})

	loader := NewLoader(nil, false)
	m, err := loader.Load(context.Background(), filepath.Join(dir, "requirements.txt"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	env := marker.DefaultEnvironment() // Linux baseline
	entries, err := m.Filter(env)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}

	// Sorted by normalized name: docker before zuul.
	want := []string{"docker", "zuul"}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if got := entries[i].Requirement.Name; got != w {
			t.Errorf("entry %d = %q, want %q", i, got, w)
		}
	}
}
