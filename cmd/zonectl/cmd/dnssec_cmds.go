package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stenstam/zonecore/internal/zone"
)

var dnssecCmd = &cobra.Command{
	Use:   "dnssec",
	Short: "Manage zone DNSSEC signing status",
}

var useNSEC3 bool

var dnssecSignCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a zone (NSEC by default, --nsec3 to use NSEC3)",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if err := mgr.Sign(zoneName, nil, useNSEC3, zone.NSEC3Params{}); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s signing status updated\n", zoneName)
	},
}

var dnssecUnsignCmd = &cobra.Command{
	Use:   "unsign",
	Short: "Remove DNSSEC signing from a zone",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if err := mgr.UnsignZone(zoneName); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s unsigned\n", zoneName)
	},
}

var dnssecDSCmd = &cobra.Command{
	Use:   "ds",
	Short: "Print the DS RRset a parent zone should publish",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		az, ok := mgr.Registry.Get(zone.NewName(zoneName))
		if !ok {
			fatal(fmt.Errorf("zone not found"))
		}
		ds, err := az.ExportDS()
		if err != nil {
			fatal(err)
		}
		for _, rr := range ds {
			fmt.Println(rr.String())
		}
	},
}

func init() {
	dnssecSignCmd.Flags().BoolVar(&useNSEC3, "nsec3", false, "sign with NSEC3 instead of NSEC")
	dnssecCmd.AddCommand(dnssecSignCmd, dnssecUnsignCmd, dnssecDSCmd)
}
