package cmd

import (
	"github.com/spf13/cobra"

	"github.com/odb-lang/odb-compiler/internal/emit"
)

var (
	buildEmit     string
	buildOutput   string
	buildPlugins  []string
	buildEngine   string
	buildKeywords []string
)

var buildCmd = &cobra.Command{
	Use:   "build <file>...",
	Short: "Compile source files",
	Long: `Compile source files into one program. The first file is the entry
file; the output name is derived from it unless -o is given.

Plugins passed with --plugin are loaded by the generated entry point and
their string tables are searched for commands.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := setup()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("engine") {
			d.Config.Build.Engine = buildEngine
		}
		if cmd.Flags().Changed("emit") {
			d.Config.Build.Emit = buildEmit
		}
		if err := d.Config.Validate(); err != nil {
			return err
		}
		kind, err := emit.ParseKind(d.Config.Build.Emit)
		if err != nil {
			return err
		}

		extra := append(append([]string(nil), buildKeywords...), buildPlugins...)
		if err := d.LoadKeywords(extra, false); err != nil {
			return report(d, err)
		}

		out := buildOutput
		if out == "" {
			out = emit.DefaultOutput(args[0], kind)
		}
		err = d.Build(cmd.Context(), args, buildPlugins, emit.Options{
			Kind:   kind,
			Output: out,
			Stdout: cmd.OutOrStdout(),
		})
		return report(d, err)
	},
}

func init() {
	f := buildCmd.Flags()
	f.StringVar(&buildEmit, "emit", "exe", "output kind: ir, bc, obj or exe")
	f.StringVarP(&buildOutput, "output", "o", "", `output file, "-" for stdout`)
	f.StringSliceVarP(&buildPlugins, "plugin", "p", nil, "plugin DLL to load (repeatable)")
	f.StringVar(&buildEngine, "engine", "tgc", "engine back end: tgc or runtime")
	f.StringSliceVarP(&buildKeywords, "keywords", "k", nil, "extra keyword files or directories")
}
