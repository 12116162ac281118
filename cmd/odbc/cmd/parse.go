package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	parseDumpAST  string
	parseKeywords []string
)

var parseCmd = &cobra.Command{
	Use:   "parse <file>...",
	Short: "Parse and type check source files",
	Long: `Parse and type check source files without generating code.

With --dump-ast the merged syntax tree is written to stdout as Graphviz
DOT or JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch parseDumpAST {
		case "", "dot", "json":
		default:
			return fmt.Errorf("unknown AST format %q (want dot or json)", parseDumpAST)
		}
		d, err := setup()
		if err != nil {
			return err
		}
		if err := d.LoadKeywords(parseKeywords, false); err != nil {
			return report(d, err)
		}
		prog, err := d.Parse(args)
		if err != nil {
			return report(d, err)
		}
		if _, err := d.Check(prog); err != nil {
			return report(d, err)
		}

		out := cmd.OutOrStdout()
		switch parseDumpAST {
		case "dot":
			return prog.Tree.WriteDOT(out, prog.Main())
		case "json":
			return prog.Tree.WriteJSON(out, prog.Main())
		}
		return nil
	},
}

func init() {
	parseCmd.Flags().StringVar(&parseDumpAST, "dump-ast", "", "write the AST as dot or json")
	parseCmd.Flags().StringSliceVarP(&parseKeywords, "keywords", "k", nil, "extra keyword files or directories")
}
