// Package cmd implements zonectl's cobra command tree: persistent flags
// on the root, one file per command family, wired directly to an
// in-process internal/manager.Manager.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stenstam/zonecore/internal/config"
	"github.com/stenstam/zonecore/internal/keystore"
	"github.com/stenstam/zonecore/internal/logging"
	"github.com/stenstam/zonecore/internal/manager"
)

var (
	cfgFile  string
	zoneName string
	verbose  bool

	mgr *manager.Manager
)

var rootCmd = &cobra.Command{
	Use:   "zonectl",
	Short: "zonectl administers zonecore's authoritative zones",
}

// Execute runs the command tree; it is the only exported entry point,
// called once from main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initManager)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default /etc/zonecore/zonecore.yaml)")
	rootCmd.PersistentFlags().StringVarP(&zoneName, "zone", "z", "", "zone name")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(zoneCmd, dnssecCmd, versionCmd)
}

// initManager loads configuration (viper via config.Load), then builds
// the Manager this process's commands operate on. A config file is
// optional for zonectl: a bare
// "list zones in this directory" invocation shouldn't require one, so a
// missing/unreadable config file falls back to built-in defaults rather
// than aborting the command.
func initManager() {
	logging.SetupCLI(verbose)

	zonesDir := "/var/lib/zonecore/zones"
	dbFile := ""
	if cfg, err := config.Load(cfgFile, rootCmd.PersistentFlags()); err != nil {
		if cfgFile != "" {
			fmt.Fprintf(os.Stderr, "loading config %s: %v\n", cfgFile, err)
		}
	} else {
		if cfg.Service.ZonesDir != "" {
			zonesDir = cfg.Service.ZonesDir
		}
		dbFile = cfg.Database.File
	}

	var ks *keystore.Store
	if dbFile != "" {
		var err error
		ks, err = keystore.Open(dbFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening keystore: %v\n", err)
		}
	}
	mgr = manager.New(zonesDir, ks, logging.StdSink{})
}
