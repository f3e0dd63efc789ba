package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/albertocavalcante/editorhost/cmd/editorhost/internal/detect"
	"github.com/albertocavalcante/editorhost/pkg/config"
)

var initFlags struct {
	check   bool
	dryRun  bool
	force   bool
	library string
}

var initCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a starter editorhost.toml",
	Long: `Initializes a project for editorhost.

This command will:
1. Detect the editor library from package.json and node_modules
2. Detect entry scripts and the default document
3. Write editorhost.toml with those settings and the built-in defaults

Use --check to verify configuration without making changes (useful for CI).
Use --dry-run to preview the file without writing it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initFlags.check, "check", false,
		"Check if the project is properly configured (exit 1 if not)")
	initCmd.Flags().BoolVar(&initFlags.dryRun, "dry-run", false,
		"Show what would be written without writing it")
	initCmd.Flags().BoolVar(&initFlags.force, "force", false,
		"Overwrite an existing editorhost.toml")
	initCmd.Flags().StringVar(&initFlags.library, "library", "",
		"Editor library package name (auto-detected if not specified)")

	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	out := cmd.OutOrStdout()
	configFile := filepath.Join(absPath, config.ConfigFileName)

	if initFlags.check {
		return runInitCheck(out, cmd.ErrOrStderr(), absPath)
	}

	project, err := detect.Detect(absPath)
	if err != nil {
		return fmt.Errorf("failed to detect project layout: %w", err)
	}
	if initFlags.library != "" {
		project.LibraryName = initFlags.library
		project.LibrarySource = ""
	}
	printDetected(out, project)

	content, err := generateConfigContent(project)
	if err != nil {
		return err
	}

	if initFlags.dryRun {
		return runInitDryRun(out, fileExists(configFile), configFile, content)
	}
	return runInitApply(out, fileExists(configFile) && !initFlags.force, configFile, content)
}

func printDetected(out io.Writer, p *detect.Project) {
	show := func(label, value string) {
		if value == "" {
			value = "(not found, using default)"
		}
		fmt.Fprintf(out, "%-17s %s\n", label+":", value)
	}
	show("Library", p.LibraryName)
	show("Library source", p.LibrarySource)
	show("Entries", strings.Join(p.Entries, ", "))
	show("Default document", p.DefaultDocument)
	fmt.Fprintln(out)
}

// projectConfig starts from the built-in defaults and applies what
// detection found.
func projectConfig(p *detect.Project) *config.Config {
	cfg := config.NewConfig()

	if p.LibraryName != "" {
		cfg.Library.Name = p.LibraryName
		cfg.Library.Prefix = "/" + p.LibraryName
		cfg.Library.Source = "node_modules/" + p.LibraryName + "/dist"
		cfg.Build.Externals = []string{p.LibraryName}
		for i := range cfg.Verify.Contains {
			cfg.Verify.Contains[i].Substrings = []string{`type="importmap"`, p.LibraryName}
		}
	}
	if p.LibrarySource != "" {
		cfg.Library.Source = p.LibrarySource
	}
	if len(p.Entries) > 0 {
		cfg.Build.Entries = p.Entries
	}
	if p.SourceDir != "" {
		cfg.Dev.Watch = []string{p.SourceDir}
	}
	if p.DefaultDocument != "" {
		cfg.Build.StaticFiles = []string{p.DefaultDocument}
	}
	return cfg
}

func generateConfigContent(p *detect.Project) (string, error) {
	data, err := config.Encode(projectConfig(p))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# editorhost configuration\n")
	sb.WriteString("# Generated by 'editorhost init'. Environment variables (PORT, EDITORHOST_*)\n")
	sb.WriteString("# and command-line flags override these values.\n\n")
	sb.Write(data)
	return sb.String(), nil
}

// runInitCheck reports problems with the project configuration and exits
// non-zero when there are any.
func runInitCheck(out, errOut io.Writer, dir string) error {
	var issues []string

	found := ""
	for _, candidate := range config.GetProjectConfigPaths(dir) {
		if fileExists(candidate) {
			found = candidate
			break
		}
	}

	if found == "" {
		issues = append(issues, fmt.Sprintf("%s not found in %s", config.ConfigFileName, dir))
	} else {
		cfg, err := config.LoadFile(found)
		if err != nil {
			issues = append(issues, err.Error())
		} else {
			if err := cfg.Validate(); err != nil {
				for _, line := range strings.Split(err.Error(), "\n") {
					issues = append(issues, line)
				}
			}
			if _, err := os.Stat(cfg.Path(cfg.Library.Source)); err != nil {
				issues = append(issues, fmt.Sprintf("library source %s not found (run 'npm install')", cfg.Library.Source))
			}
			for _, entry := range cfg.Build.Entries {
				if !fileExists(cfg.Path(entry)) {
					issues = append(issues, fmt.Sprintf("build entry %s not found", entry))
				}
			}
		}
	}

	if len(issues) > 0 {
		fmt.Fprintln(errOut, "Project configuration issues:")
		for _, issue := range issues {
			fmt.Fprintf(errOut, "  - %s\n", issue)
		}
		fmt.Fprintln(errOut, "\nRun 'editorhost init' to fix")
		return &ExitError{Code: 1}
	}

	fmt.Fprintln(out, "Project is properly configured")
	return nil
}

func runInitDryRun(out io.Writer, exists bool, configFile, content string) error {
	if exists {
		fmt.Fprintf(out, "%s exists at %s (would not modify without --force)\n", config.ConfigFileName, configFile)
		return nil
	}
	fmt.Fprintf(out, "Would create %s:\n", configFile)
	fmt.Fprintln(out, content)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runInitApply(out io.Writer, keep bool, configFile, content string) error {
	if keep {
		fmt.Fprintf(out, "%s already exists (skipping, use --force to overwrite)\n", config.ConfigFileName)
		return nil
	}

	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", config.ConfigFileName, err)
	}
	fmt.Fprintf(out, "Created %s\n", configFile)

	fmt.Fprintln(out, "\nNext steps:")
	fmt.Fprintln(out, "  1. Add an import map for the library to your default document")
	fmt.Fprintln(out, "  2. Run 'editorhost copy' to mirror the library")
	fmt.Fprintln(out, "  3. Run 'editorhost dev' to build, watch and serve")

	return nil
}
