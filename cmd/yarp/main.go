package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/frederic-klein/yarp/internal/fetch"
	"github.com/frederic-klein/yarp/internal/marker"
	"github.com/frederic-klein/yarp/internal/reqfile"
)

var (
	verbose  bool
	cacheDir string
	workers  int

	pythonVersion     string
	pythonFullVersion string
	platformSystem    string
	platformMachine   string
	sysPlatform       string
	osName            string
	implName          string
	extra             string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "yarp",
		Short: "Yet Another Requirements Parser - parses and evaluates pip requirements files",
		Long:  "YARP parses pip-style requirements files, follows -r and -c includes, validates requirement expressions, and evaluates environment markers against a target interpreter and platform.",
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "Cache directory for remote includes (default ~/.yarp/cache)")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "w", 5, "Parallel fetch workers for remote files")

	checkCmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Parse requirements files and report problems",
		RunE:  runCheck,
	}

	listCmd := &cobra.Command{
		Use:   "list [files...]",
		Short: "Print the requirements that apply to a target environment",
		RunE:  runList,
	}
	addEnvFlags(listCmd)

	reportCmd := &cobra.Command{
		Use:   "report [files...]",
		Short: "Emit the parsed manifest as YAML",
		RunE:  runReport,
	}

	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(reportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func addEnvFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&pythonVersion, "python-version", "", "Target python_version (e.g. 3.11)")
	cmd.Flags().StringVar(&pythonFullVersion, "python-full-version", "", "Target python_full_version (e.g. 3.11.9)")
	cmd.Flags().StringVar(&platformSystem, "platform-system", "", "Target platform_system (e.g. Linux, Darwin, Windows)")
	cmd.Flags().StringVar(&platformMachine, "platform-machine", "", "Target platform_machine (e.g. x86_64, aarch64)")
	cmd.Flags().StringVar(&sysPlatform, "sys-platform", "", "Target sys_platform (e.g. linux, darwin, win32)")
	cmd.Flags().StringVar(&osName, "os-name", "", "Target os_name (e.g. posix, nt)")
	cmd.Flags().StringVar(&implName, "implementation-name", "", "Target implementation_name (e.g. cpython)")
	cmd.Flags().StringVar(&extra, "extra", "", "Extra to evaluate 'extra == ...' markers against")
}

func environmentFromFlags() marker.Environment {
	env := marker.DefaultEnvironment()
	set := func(name, value string) {
		if value != "" {
			_ = env.Set(name, value)
		}
	}
	set("python_version", pythonVersion)
	set("python_full_version", pythonFullVersion)
	set("platform_system", platformSystem)
	set("platform_machine", platformMachine)
	set("sys_platform", sysPlatform)
	set("os_name", osName)
	set("implementation_name", implName)
	set("extra", extra)
	return env
}

func inputFiles(args []string) []string {
	if len(args) == 0 {
		return []string{"./requirements.txt"}
	}
	return args
}

func newFetcher() (*fetch.Fetcher, error) {
	dir := cacheDir
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".yarp", "cache")
	}
	return fetch.NewFetcher(workers, dir), nil
}

// loadAll loads every input file into a single manifest, prefetching
// remote top-level files in parallel first.
func loadAll(ctx context.Context, files []string) (*reqfile.Manifest, error) {
	fetcher, err := newFetcher()
	if err != nil {
		return nil, err
	}

	var jobs []fetch.Job
	for _, f := range files {
		if isRemote(f) {
			jobs = append(jobs, fetch.Job{URL: f, DestPath: fetcher.CachePath(f)})
		}
	}
	if len(jobs) > 0 {
		for _, result := range fetcher.FetchAll(ctx, jobs) {
			if result.Error != nil {
				return nil, fmt.Errorf("fetching %s: %w", result.Job.URL, result.Error)
			}
		}
	}

	merged := &reqfile.Manifest{}
	loader := reqfile.NewLoader(fetcher, verbose)
	for _, f := range files {
		m, err := loader.Load(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
		merged.Requirements = append(merged.Requirements, m.Requirements...)
		merged.Constraints = append(merged.Constraints, m.Constraints...)
		merged.Editables = append(merged.Editables, m.Editables...)
		merged.Problems = append(merged.Problems, m.Problems...)
		merged.Options = mergeOptions(merged.Options, m.Options)
	}
	return merged, nil
}

func mergeOptions(dst, src reqfile.Options) reqfile.Options {
	if src.IndexURL != "" {
		dst.IndexURL = src.IndexURL
	}
	dst.ExtraIndexURLs = append(dst.ExtraIndexURLs, src.ExtraIndexURLs...)
	dst.FindLinks = append(dst.FindLinks, src.FindLinks...)
	dst.NoIndex = dst.NoIndex || src.NoIndex
	return dst
}

func isRemote(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func runCheck(cmd *cobra.Command, args []string) error {
	manifest, err := loadAll(cmd.Context(), inputFiles(args))
	if err != nil {
		return err
	}

	for _, p := range manifest.Problems {
		fmt.Fprintln(os.Stderr, p.String())
	}
	if n := len(manifest.Problems); n > 0 {
		return fmt.Errorf("%d problem(s) found", n)
	}

	fmt.Printf("OK: %d requirement(s)\n", len(manifest.Requirements))
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	manifest, err := loadAll(cmd.Context(), inputFiles(args))
	if err != nil {
		return err
	}
	if len(manifest.Problems) > 0 {
		for _, p := range manifest.Problems {
			fmt.Fprintln(os.Stderr, p.String())
		}
		return fmt.Errorf("%d problem(s) found", len(manifest.Problems))
	}

	entries, err := manifest.Filter(environmentFromFlags())
	if err != nil {
		return fmt.Errorf("evaluating markers: %w", err)
	}

	emitter := reqfile.NewEmitter(os.Stdout)
	if err := emitter.Emit(entries); err != nil {
		return fmt.Errorf("writing requirements: %w", err)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	manifest, err := loadAll(cmd.Context(), inputFiles(args))
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(reqfile.NewReport(manifest))
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}
