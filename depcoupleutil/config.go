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

package depcoupleutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lnashier/viper"
	"github.com/opendeplete/depcouple"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
)

// DefaultRatesFile is the name of the rate file written in the run
// directory when RatesFile is not set.
const DefaultRatesFile = "rates.nc"

// expandStringSlice expands the environment variables in a slice of strings.
func expandStringSlice(s []string) []string {
	for i := 0; i < len(s); i++ {
		s[i] = os.ExpandEnv(s[i])
	}
	return s
}

// listItems splits a list given on the command line, in an environment
// variable or in a configuration file into its items. Flags that were not
// set report their default as text, for example "[1,2]".
func listItems(name string, v interface{}) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	if s, ok := v.(string); ok {
		v = strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	}
	strs, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("depcouple: reading '%s': %v", name, err)
	}
	o := make([]string, 0, len(strs))
	for _, s := range strs {
		if s = strings.Trim(strings.TrimSpace(s), "[]"); s != "" {
			o = append(o, s)
		}
	}
	return o, nil
}

func toFloat64Slice(name string, v interface{}) ([]float64, error) {
	items, err := listItems(name, v)
	if err != nil {
		return nil, err
	}
	o := make([]float64, len(items))
	for i, s := range items {
		if o[i], err = cast.ToFloat64E(s); err != nil {
			return nil, fmt.Errorf("depcouple: reading '%s': %v", name, err)
		}
	}
	return o, nil
}

func toIntSlice(name string, v interface{}) ([]int, error) {
	items, err := listItems(name, v)
	if err != nil {
		return nil, err
	}
	o, err := cast.ToIntSliceE(items)
	if err != nil {
		return nil, fmt.Errorf("depcouple: reading '%s': %v", name, err)
	}
	return o, nil
}

// checkGeometry makes sure that a geometry file is specified, and expands
// any environment variables.
func checkGeometry(f string) (string, error) {
	f = os.ExpandEnv(f)
	if f == "" {
		return "", fmt.Errorf(`depcouple: you need to specify a geometry file (for example: Geometry="geometry.toml")`)
	}
	if _, err := os.Stat(f); err != nil {
		return "", fmt.Errorf("depcouple: the geometry file is not accessible: %v", err)
	}
	return f, nil
}

// checkRunDir expands any environment variables in the run directory and
// makes sure it is specified.
func checkRunDir(dir string) (string, error) {
	dir = os.ExpandEnv(dir)
	if dir == "" {
		return "", fmt.Errorf("depcouple: the RunDir configuration variable must be set")
	}
	return dir, nil
}

// checkRatesFile fills in a default value for the rate file path if one
// isn't specified.
func checkRatesFile(f, runDir string) string {
	f = os.ExpandEnv(f)
	if f == "" {
		f = filepath.Join(runDir, DefaultRatesFile)
	}
	return f
}

// solverCommand returns the command that runs the transport solver.
func solverCommand(v interface{}) ([]string, error) {
	if v == nil {
		return nil, fmt.Errorf("depcouple: the SolverCommand configuration variable must be set")
	}
	if s, ok := v.(string); ok {
		v = strings.Fields(s)
	}
	cmd, err := cast.ToStringSliceE(v)
	if err != nil {
		return nil, fmt.Errorf("depcouple: reading 'SolverCommand': %v", err)
	}
	if len(cmd) == 0 || cmd[0] == "" {
		return nil, fmt.Errorf("depcouple: the SolverCommand configuration variable must be set")
	}
	return expandStringSlice(cmd), nil
}

// checkLogLevel parses the LogLevel configuration variable.
func checkLogLevel(level string) (logrus.Level, error) {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return l, fmt.Errorf("depcouple: the LogLevel configuration variable "+
			"needs to be one of debug, info, warning or error but is `%s`", level)
	}
	return l, nil
}

// SettingsFromConfig creates operator settings from the configuration
// information in cfg.
func SettingsFromConfig(cfg *viper.Viper) (*depcouple.Settings, error) {
	s := depcouple.NewSettings()
	s.Chain = os.ExpandEnv(cfg.GetString("Chain"))
	s.CrossSections = os.ExpandEnv(cfg.GetString("CrossSections"))

	var err error
	if s.RunDir, err = checkRunDir(cfg.GetString("RunDir")); err != nil {
		return nil, err
	}
	s.Power = cfg.GetFloat64("Power")
	if s.Power <= 0 {
		return nil, fmt.Errorf("depcouple: the Power configuration variable must be "+
			"set to a positive value but is %g", s.Power)
	}
	s.Batches = cfg.GetInt("Batches")
	s.Inactive = cfg.GetInt("Inactive")
	s.Particles = cfg.GetInt("Particles")
	if s.LowerLeft, err = toFloat64Slice("LowerLeft", cfg.Get("LowerLeft")); err != nil {
		return nil, err
	}
	if s.UpperRight, err = toFloat64Slice("UpperRight", cfg.Get("UpperRight")); err != nil {
		return nil, err
	}
	if s.EntropyDimension, err = toIntSlice("EntropyDimension", cfg.Get("EntropyDimension")); err != nil {
		return nil, err
	}
	s.DiluteInitial = cfg.GetFloat64("DiluteInitial")
	s.RoundNumber = cfg.GetBool("RoundNumber")
	if s.ConstantSeed, err = cast.ToInt64E(cfg.Get("ConstantSeed")); err != nil {
		return nil, fmt.Errorf("depcouple: reading 'ConstantSeed': %v", err)
	}
	return s, nil
}
