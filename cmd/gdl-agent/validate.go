package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/gdl"
	"github.com/byewind1/gdl-agent/internal/libpart"
)

var (
	styleDefect = lipgloss.NewStyle().Foreground(lipgloss.Color("red"))
	styleOK     = lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true)
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>...",
		Short: "Check library-part XML or GDL scripts for structural defects",
		Long: `Validate checks documents without compiling them. XML files are parsed
as library parts and every script section is checked; any other file is
treated as a bare 3D script.`,
		Example: `  gdl-agent validate Shelf.xml
  gdl-agent validate scripts/bracket.gdl`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			defective := 0
			for _, path := range args {
				defects, err := validateFile(path)
				if err != nil {
					return err
				}
				if len(defects) == 0 {
					fmt.Printf("%s %s\n", styleOK.Render("✓"), path)
					continue
				}
				defective++
				fmt.Printf("%s %s\n", styleDefect.Render("✗"), path)
				for _, d := range defects {
					fmt.Printf("  %s\n", styleDefect.Render(d.String()))
				}
			}
			if defective > 0 {
				return fmt.Errorf("%d of %d files have defects", defective, len(args))
			}
			return nil
		},
	}
	return cmd
}

func validateFile(path string) ([]gdl.Defect, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if strings.EqualFold(filepath.Ext(path), ".xml") {
		sym, err := libpart.Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return sym.ValidateScripts(), nil
	}
	return gdl.Validate(string(data)), nil
}
