package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/packhouse/packhouse/internal/types"
)

var (
	listRepo    string
	listInvalid bool
	listFormat  string
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l", "ls"},
	Short:   "List discovered packages",
	Long: `List scans the configured repositories and prints the indexed packages.
With --invalid the packages that failed validation or collided on
identifier are printed instead.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listRepo, "repository", "r", "", "limit to one repository")
	listCmd.Flags().BoolVar(&listInvalid, "invalid", false, "list invalid packages instead")
	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table, yaml)")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
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
	if listRepo != "" {
		err = m.ScanRepository(ctx, listRepo)
	} else {
		err = m.ScanAll(ctx)
	}
	if err != nil {
		return err
	}

	type row struct {
		Repository string   `yaml:"repository"`
		Identifier string   `yaml:"identifier,omitempty"`
		Name       string   `yaml:"name,omitempty"`
		Path       string   `yaml:"path"`
		Items      int      `yaml:"items"`
		Missing    []string `yaml:"missing,omitempty"`
	}
	var rows []row
	for _, repo := range m.Repositories() {
		if listRepo != "" && repo.Name() != listRepo {
			continue
		}
		var pkgs []*types.PackageInfo
		if listInvalid {
			pkgs = repo.InvalidPackages()
		} else {
			for _, pkg := range repo.Packages() {
				pkgs = append(pkgs, pkg)
			}
		}
		for _, pkg := range pkgs {
			r := row{
				Repository: repo.Name(),
				Identifier: pkg.Identifier,
				Name:       pkg.Name,
				Path:       pkg.Path,
				Items:      len(pkg.Items),
			}
			if listInvalid {
				r.Missing = pkg.MissingFields()
			}
			rows = append(rows, r)
		}
	}

	out := cmd.OutOrStdout()
	if listFormat == "yaml" {
		return yaml.NewEncoder(out).Encode(rows)
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "REPOSITORY\tIDENTIFIER\tNAME\tPATH\tITEMS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n", r.Repository, r.Identifier, r.Name, r.Path, r.Items)
	}
	return w.Flush()
}
