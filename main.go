package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cs-au-dk/symex/checks"
	"github.com/cs-au-dk/symex/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var opts = utils.Opts()

var rootCmd = &cobra.Command{
	Use:           "symex",
	Short:         "symex - symbolic execution of Go functions against rule checks",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return configure(cmd.Flags())
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [packages...]",
	Short: "Run the rule checks on every function of the packages",
	Long: "Loads the packages, lowers their functions to control-flow graphs and\n" +
		"explores them symbolically. Available checks: " + fmt.Sprint(checks.Names()),
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := load(args)
		if err != nil {
			return err
		}
		defer p.logger.Sync()

		results, err := p.analyze(cmd.Context())
		if err != nil {
			return err
		}
		if err := p.report(os.Stdout, results); err != nil {
			return err
		}
		if opts.Metrics() {
			printMetrics(os.Stdout, results)
		}
		return nil
	},
}

var cfgCmd = &cobra.Command{
	Use:   "cfg [packages...]",
	Short: "Print the control-flow graph of a function",
	Long: `Prints the control-flow graph of the function selected with --fun, or of
every function when none is selected. With --dot the graph is rendered to an image.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := load(args)
		if err != nil {
			return err
		}
		defer p.logger.Sync()
		return p.printGraphs(os.Stdout)
	},
}

func init() {
	utils.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(cfgCmd)
}

// configure applies the configuration file, if any, underneath the flags
// set on the command line.
func configure(flags *pflag.FlagSet) error {
	if path := opts.ConfigPath(); path != "" {
		conf, err := utils.LoadConfig(path)
		if err != nil {
			return err
		}
		conf.Apply(func(name string) bool {
			return flags.Changed(name)
		})
	}
	return utils.ValidateArgs()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, utils.CanColorize(colorErr)("error:"), err)
		os.Exit(1)
	}
}
