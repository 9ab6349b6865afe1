package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:     "scan [repository]",
	Aliases: []string{"s"},
	Short:   "Scan configured repositories for packages",
	Long: `Scan walks each repository tree looking for package directories (those
containing the configured metadata filename), validates their metadata, and
builds the identifier index. With a repository name argument only that
repository is scanned; otherwise all repositories are scanned concurrently.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
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
	if len(args) == 1 {
		err = m.ScanRepository(ctx, args[0])
	} else {
		err = m.ScanAll(ctx)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tPACKAGES\tINVALID")
	for _, repo := range m.Repositories() {
		if len(args) == 1 && repo.Name() != args[0] {
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\n", repo.Name(), repo.Count(), len(repo.InvalidPackages()))
	}
	return w.Flush()
}
