package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/byewind1/gdl-agent/internal/compiler"
	"github.com/byewind1/gdl-agent/internal/config"
	"github.com/byewind1/gdl-agent/internal/subproc"
)

func newDecompileCommand(pm *subproc.ProcessManager) *cobra.Command {
	var outputDir string
	cmd := &cobra.Command{
		Use:   "decompile <artifact.gsm>",
		Short: "Convert a compiled library part back to XML",
		Long: `Decompile runs LP_XMLConverter in reverse, producing the XML document
for an existing .gsm artifact. The result can be fed back to run
--source for iterative modification.`,
		Example: `  gdl-agent decompile output/Shelf_v3.gsm --output-dir=parts`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadDefault()
			if err != nil {
				return err
			}

			path := cfg.Compiler.ConverterPath
			if path == "" {
				path = "LP_XMLConverter"
			}
			timeout := time.Duration(cfg.Compiler.TimeoutSeconds) * time.Second
			conv := compiler.NewConverter(path, timeout, pm)
			if !conv.Available() {
				return fmt.Errorf("LP_XMLConverter is not available; set compiler.converter_path")
			}

			res := conv.Decompile(cmd.Context(), args[0], outputDir)
			if res.Status != compiler.StatusSuccess {
				return fmt.Errorf("decompile %s: %s", res.Status, res.Summary())
			}
			fmt.Printf("Wrote %s\n", res.ArtifactPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the extracted XML")
	return cmd
}
