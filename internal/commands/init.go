package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sitebooks/sitebooks/internal/accounts"
	"github.com/sitebooks/sitebooks/internal/config"
	"github.com/sitebooks/sitebooks/internal/importer"
)

func newInitCommand() *cobra.Command {
	var name string
	var companyID string
	var chart string

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new sitebooks project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			if companyID == "" {
				companyID = slug(name)
			}
			return runInit(cmd, absDir, name, companyID, chart)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "company name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&companyID, "company-id", "", "company id (default: derived from --name)")
	cmd.Flags().StringVar(&chart, "chart", "construction", "starter chart of accounts")

	return cmd
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

func runInit(cmd *cobra.Command, dir, name, companyID, chart string) error {
	if companyID == "" {
		return fmt.Errorf("cannot derive a company id from %q; pass --company-id", name)
	}

	dirs := []string{
		filepath.Dir(accounts.ChartPath),
		"logs",
		importer.DefaultDir,
		filepath.Join(importer.DefaultDir, "processed"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(filepath.Join(dir, d), 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	}
	cfg := config.Default(companyID, name)
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	if err := accounts.Save(dir, accounts.DefaultChart(chart)); err != nil {
		return fmt.Errorf("writing chart of accounts: %w", err)
	}

	gitignore := "logs/\nimport/processed/\n"
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, importer.DefaultDir, ".gitkeep"), []byte{}, 0o644); err != nil {
		return fmt.Errorf("writing .gitkeep: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized sitebooks project for %s (%s) at %s\n", name, companyID, dir)
	return nil
}
