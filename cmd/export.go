package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	exportRepo   string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:     "export <identifier>",
	Aliases: []string{"e"},
	Short:   "Export a package's contents as a zip archive",
	Long: `Export streams a zip of the package's directory contents. The package
definition's ignore globs are applied; without any, the _resources
sub-tree is excluded by default.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportRepo, "repository", "r", "", "repository to look in (default: search all)")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: <identifier>.zip, \"-\" for stdout)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	m, err := buildManager(cfg, log)
	if err != nil {
		return err
	}
	defer m.Close()

	ctx := cmd.Context()
	if err := m.ScanAll(ctx); err != nil {
		return err
	}

	identifier := args[0]
	repoName := exportRepo
	if repoName == "" {
		for _, repo := range m.Repositories() {
			if _, ok := repo.Package(identifier); ok {
				repoName = repo.Name()
				break
			}
		}
		if repoName == "" {
			return fmt.Errorf("package %q not found in any repository", identifier)
		}
	}

	if exportOutput == "-" {
		return m.ExportPackage(ctx, repoName, identifier, cmd.OutOrStdout())
	}

	output := exportOutput
	if output == "" {
		output = identifier + ".zip"
	}
	f, err := os.Create(output)
	if err != nil {
		return err
	}
	if err := m.ExportPackage(ctx, repoName, identifier, f); err != nil {
		f.Close()
		os.Remove(output)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "exported %s to %s\n", identifier, output)
	return nil
}
