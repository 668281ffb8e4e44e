/*
Copyright © 2024 the e-map authors.
This file is part of e-map.

e-map is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

e-map is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with e-map.  If not, see <http://www.gnu.org/licenses/>.*/

// Command emap runs the spatial emission disaggregation engine from a
// single TOML configuration file, in the same one-binary,
// one-config-flag style of a single-binary command-line tool.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/VITObelgium/emap/internal/emapconfig"
	"github.com/VITObelgium/emap/internal/runctl"
)

var (
	configFile string
	verbose    bool

	log = logrus.StandardLogger()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "emap",
	Short: "A spatial emission disaggregation engine.",
	Long: "emap distributes national and regional emission totals over a " +
		"nested sequence of model grids using the best available spatial " +
		"pattern for each country, sector and pollutant.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(logrus.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./emap.toml", "configuration file location")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(runCmd, validateConfigCmd, versionCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a disaggregation pass over the configured grid cascade.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := emapconfig.Load(configFile)
		if err != nil {
			return err
		}
		res, err := runctl.Run(cmd.Context(), cfg, log)
		if err != nil {
			return err
		}
		if len(res.ExceedsTol) > 0 {
			log.Warnf("emap: %d key(s) exceeded the mass-balance tolerance", len(res.ExceedsTol))
		}
		log.Info("emap: run completed")
		return nil
	},
}

var validateConfigCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Parse and validate a configuration file without running anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := emapconfig.Load(configFile); err != nil {
			return err
		}
		fmt.Println("emap: configuration is valid")
		return nil
	},
}

// version is set at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number.",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("emap v%s\n", version)
	},
}
