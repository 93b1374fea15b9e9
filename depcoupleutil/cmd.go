/*
Copyright © 2018 the depcouple authors.
This file is part of depcouple.

depcouple is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

depcouple is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with depcouple.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package depcoupleutil is the command-line and configuration layer of
// depcouple.
package depcoupleutil

import (
	"context"
	"fmt"

	"github.com/lnashier/viper"
	"github.com/opendeplete/depcouple"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to depcouple.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "LogLevel",
			usage: `
              LogLevel is the minimum severity of log messages: debug,
              info, warning or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "workers",
			usage: `
              workers is the number of workers to run as goroutines in
              this process. It is ignored when size is greater than 1.`,
			shorthand:  "w",
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags(), topologyCmd.Flags()},
		},
		{
			name: "size",
			usage: `
              size is the number of worker processes in a distributed run.
              Each process is started separately with its own rank.`,
			defaultVal: 1,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags(), topologyCmd.Flags()},
		},
		{
			name: "rank",
			usage: `
              rank is the rank of this process in a distributed run. Rank 0
              is the leader.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags(), topologyCmd.Flags()},
		},
		{
			name: "leader",
			usage: `
              leader is the address of the leader process. It is required
              for every rank other than 0.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags(), topologyCmd.Flags()},
		},
		{
			name: "listen",
			usage: `
              listen is the address this process accepts messages from other
              workers on in a distributed run.`,
			defaultVal: ":6060",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags(), topologyCmd.Flags()},
		},
		{
			name: "Geometry",
			usage: `
              Geometry is the path to the TOML file describing the cells of
              the model and the materials filling them.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "CrossSections",
			usage: `
              CrossSections is the path to the cross section catalog of the
              transport solver.`,
			defaultVal: "${" + depcouple.CrossSectionsEnv + "}",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "Chain",
			usage: `
              Chain is the path to the depletion chain file.`,
			defaultVal: "${" + depcouple.ChainEnv + "}",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "RunDir",
			usage: `
              RunDir is the directory the solver input documents are
              written to and the solver runs in. It must be on a file
              system shared by every worker.`,
			defaultVal: "run",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "SolverCommand",
			usage: `
              SolverCommand is the program, and its arguments, that runs
              one transport solve in RunDir.`,
			defaultVal: []string{"openmc"},
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "Power",
			usage: `
              Power is the total power the reaction rates are normalized to,
              in the units of the sum of fission rate times Q in MeV. It
              must be set.`,
			defaultVal: 0.0,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "Batches",
			usage: `
              Batches is the total number of transport batches.`,
			defaultVal: 100,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "Inactive",
			usage: `
              Inactive is the number of batches discarded before tallying.`,
			defaultVal: 10,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "Particles",
			usage: `
              Particles is the number of source particles per batch.`,
			defaultVal: 1000,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "LowerLeft",
			usage: `
              LowerLeft is the lower-left corner of the initial source box.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "UpperRight",
			usage: `
              UpperRight is the upper-right corner of the initial source box.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "EntropyDimension",
			usage: `
              EntropyDimension, if set, adds a Shannon entropy mesh over the
              source box with this many cells in each direction.`,
			defaultVal: []int{},
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "DiluteInitial",
			usage: `
              DiluteInitial is the initial density, in atoms/(b·cm), of
              every burn nuclide in every burnable material. Set it to 0 to
              start from the densities in the geometry file only.`,
			defaultVal: depcouple.DefaultDiluteInitial,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "RoundNumber",
			usage: `
              RoundNumber rounds the densities written for the solver to
              8 decimal places of their mantissa.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "ConstantSeed",
			usage: `
              ConstantSeed, if not 0, is the random seed of every solve.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "RatesFile",
			usage: `
              RatesFile is where the normalized reaction rates are saved.
              It defaults to ` + DefaultRatesFile + ` in RunDir.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
		{
			name: "MetricsAddress",
			usage: `
              MetricsAddress, if set, is the address the leader serves
              Prometheus metrics on, for example ":9090".`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{evalCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("DEPCOUPLE")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case []int:
				if option.shorthand == "" {
					set.IntSlice(option.name, option.defaultVal.([]int), option.usage)
				} else {
					set.IntSliceP(option.name, option.shorthand, option.defaultVal.([]int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
	Cfg.AutomaticEnv()
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(evalCmd)
	Root.AddCommand(topologyCmd)
}

// setConfig finds and reads in the configuration file, if there is one,
// and sets up logging.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("depcouple: problem reading configuration file: %v", err)
		}
	}
	level, err := checkLogLevel(Cfg.GetString("LogLevel"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "depcouple",
	Short: "Couple a burnup calculation to a neutron transport solver.",
	Long: `depcouple pushes nuclide densities into the input of an external neutron
transport solver, runs it, and normalizes the reaction rates it tallies to
a target power. Use the subcommands specified below to access its
functionality.

Refer to the subcommand documentation for configuration options and default settings.
Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'DEPCOUPLE_var' where 'var' is the
name of the variable to be set. Path variables are additionally
allowed to contain environment variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of depcouple.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "depcouple v%s\n", depcouple.Version)
	},
	DisableAutoGenTag: true,
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Run one coupled step",
	Long: `eval decomposes the model in the Geometry file across the workers, writes
the solver input documents to RunDir, runs one transport solve and saves the
normalized reaction rates of every burnable material to RatesFile.

Workers run as goroutines in this process unless size is greater than 1, in
which case each process is one worker: start rank 0 with --listen and the
others with --rank, --leader and their own --listen address.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Eval(context.Background(), Cfg, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Report the worker topology",
	Long: `topology connects the workers the same way eval does and reports how many
nodes they run on and how many workers run on each node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Topology(Cfg, cmd.OutOrStdout())
	},
	DisableAutoGenTag: true,
}
