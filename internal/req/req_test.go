package req

import (
	"strings"
	"testing"

	"github.com/frederic-klein/yarp/internal/marker"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string // canonical String() form
		wantErr bool
	}{
		{name: "bare name", input: `requests`, want: `requests`},
		{name: "pinned", input: `requests==2.31.0`, want: `requests==2.31.0`},
		{name: "range", input: `requests >= 2.0, < 3.0`, want: `requests>=2.0,<3.0`},
		{name: "parenthesized specifiers", input: `requests (>=2.0,<3.0)`, want: `requests>=2.0,<3.0`},
		{name: "extras", input: `uvicorn[standard]`, want: `uvicorn[standard]`},
		{name: "extras sorted", input: `flytekit[sqs , spark]>=1.0`, want: `flytekit[spark,sqs]>=1.0`},
		{name: "name normalized", input: `Pillow_SIMD.fork==9.0`, want: `pillow-simd-fork==9.0`},
		{
			name:  "marker",
			input: `torch==1.12.1; python_version < "3.11"`,
			want:  `torch==1.12.1 ; python_version < "3.11"`,
		},
		{
			name:  "marker only",
			input: `pywin32; platform_system == "Windows"`,
			want:  `pywin32 ; platform_system == "Windows"`,
		},
		{
			name:  "complex marker",
			input: `tensorflow==2.8.1; python_version >= "3.7" and platform_machine != "arm64"`,
			want:  `tensorflow==2.8.1 ; python_version >= "3.7" and platform_machine != "arm64"`,
		},
		{
			name:  "url requirement",
			input: `pkg @ https://example.com/pkg-1.0.tar.gz`,
			want:  `pkg @ https://example.com/pkg-1.0.tar.gz`,
		},
		{
			name:  "url with marker",
			input: `pkg @ https://example.com/pkg.whl ; sys_platform == "linux"`,
			want:  `pkg @ https://example.com/pkg.whl ; sys_platform == "linux"`,
		},
		{name: "wildcard", input: `grpcio!=1.55.*`, want: `grpcio!=1.55.*`},
		{name: "compatible release", input: `packaging~=23.1`, want: `packaging~=23.1`},

		{name: "empty", input: ``, wantErr: true},
		{name: "leading dash", input: `-requests`, wantErr: true},
		{name: "bad specifier", input: `requests==`, wantErr: true},
		{name: "bad marker", input: `requests; python_version`, wantErr: true},
		{name: "empty marker", input: `requests;`, wantErr: true},
		{name: "missing url", input: `pkg @`, wantErr: true},
		{name: "unbalanced quote", input: `pkg; python_version < "3.11`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Parse(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Parse(%q) expected error, got %+v", tt.input, r)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.input, err)
			}
			if got := r.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"requests", "requests"},
		{"Requests", "requests"},
		{"typing_extensions", "typing-extensions"},
		{"ruamel.yaml", "ruamel-yaml"},
		{"a-_.b", "a-b"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequirement_Applies(t *testing.T) {
	env := marker.DefaultEnvironment()
	env.PlatformSystem = "Windows"

	noMarker, err := Parse(`requests==2.31.0`)
	if err != nil {
		t.Fatal(err)
	}
	ok, err := noMarker.Applies(env)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("requirement without marker should always apply")
	}

	withMarker, err := Parse(`docker; platform_system != "Windows"`)
	if err != nil {
		t.Fatal(err)
	}
	ok, err = withMarker.Applies(env)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error(`marker platform_system != "Windows" should not apply on Windows`)
	}
}

func TestParse_ExtrasDetails(t *testing.T) {
	r, err := Parse(`uvicorn[standard,watchfiles]>=0.20`)
	if err != nil {
		t.Fatal(err)
	}
	if len(r.Extras) != 2 || r.Extras[0] != "standard" || r.Extras[1] != "watchfiles" {
		t.Errorf("Extras = %v, want [standard watchfiles]", r.Extras)
	}
	if !strings.HasPrefix(r.String(), "uvicorn[standard,watchfiles]") {
		t.Errorf("String() = %q", r.String())
	}
}
