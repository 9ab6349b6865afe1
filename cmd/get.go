package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var getRepo string

var getCmd = &cobra.Command{
	Use:     "get <identifier>",
	Aliases: []string{"g"},
	Short:   "Show one package by identifier",
	Args:    cobra.ExactArgs(1),
	RunE:    runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getRepo, "repository", "r", "", "repository to look in (default: search all)")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
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

	if err := m.ScanAll(cmd.Context()); err != nil {
		return err
	}

	identifier := args[0]
	if getRepo != "" {
		pkg, err := m.Package(getRepo, identifier)
		if err != nil {
			return err
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(pkg)
	}

	for _, repo := range m.Repositories() {
		if pkg, ok := repo.Package(identifier); ok {
			return yaml.NewEncoder(cmd.OutOrStdout()).Encode(pkg)
		}
	}
	return fmt.Errorf("package %q not found in any repository", identifier)
}
