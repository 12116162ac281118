package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odb-lang/odb-compiler/internal/keywords"
)

var (
	kwRecursive  bool
	kwDumpFormat string
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Inspect keyword definitions",
}

var keywordsLoadCmd = &cobra.Command{
	Use:   "load <file|dir>...",
	Short: "Load keyword files and plugins and report what was found",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := setup()
		if err != nil {
			return err
		}
		if err := d.LoadKeywords(args, kwRecursive); err != nil {
			return report(d, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d keywords from %d plugins\n",
			d.Keywords.Len(), len(d.Keywords.Plugins()))
		return nil
	},
}

var keywordsDumpCmd = &cobra.Command{
	Use:   "dump [file|dir]...",
	Short: "Print every loaded keyword",
	RunE: func(cmd *cobra.Command, args []string) error {
		format := keywords.DumpFormat(kwDumpFormat)
		switch format {
		case keywords.DumpJSON, keywords.DumpINI, keywords.DumpNames, keywords.DumpYAML:
		default:
			return fmt.Errorf("unknown dump format %q (want json, ini, names or yaml)", kwDumpFormat)
		}
		d, err := setup()
		if err != nil {
			return err
		}
		if err := d.LoadKeywords(args, kwRecursive); err != nil {
			return report(d, err)
		}
		return keywords.Dump(cmd.OutOrStdout(), d.Keywords, format)
	},
}

func init() {
	keywordsCmd.PersistentFlags().BoolVarP(&kwRecursive, "recursive", "r", false, "descend into subdirectories")
	keywordsDumpCmd.Flags().StringVarP(&kwDumpFormat, "format", "f", "names", "output format: json, ini, names or yaml")
	keywordsCmd.AddCommand(keywordsLoadCmd, keywordsDumpCmd)
}
