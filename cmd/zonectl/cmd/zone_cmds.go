package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stenstam/zonecore/internal/zone"
)

var zoneCmd = &cobra.Command{
	Use:   "zone",
	Short: "Manage authoritative zones",
}

var (
	primaryNS string
	adminMbox string
	upstream  string
)

var zoneCreatePrimaryCmd = &cobra.Command{
	Use:   "create-primary",
	Short: "Create a new primary zone",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if _, err := mgr.CreatePrimary(zoneName, primaryNS, adminMbox, 0); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s created (primary)\n", zoneName)
	},
}

var zoneCreateSecondaryCmd = &cobra.Command{
	Use:   "create-secondary",
	Short: "Create a new secondary zone mirroring upstream",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if _, err := mgr.CreateSecondary(zoneName, upstream); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s created (secondary of %s)\n", zoneName, upstream)
	},
}

var zoneCreateStubCmd = &cobra.Command{
	Use:   "create-stub",
	Short: "Create a new stub zone",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if _, err := mgr.CreateStub(zoneName, upstream); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s created (stub)\n", zoneName)
	},
}

var zoneCreateForwarderCmd = &cobra.Command{
	Use:   "create-forwarder",
	Short: "Create a new forwarder zone",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		targets := make([]zone.FWDTarget, 0, len(args))
		for _, a := range args {
			targets = append(targets, zone.FWDTarget{Address: a})
		}
		if _, err := mgr.CreateForwarder(zoneName, targets); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s created (forwarder)\n", zoneName)
	},
}

var zoneDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a zone",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if err := mgr.DeleteZone(zoneName); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s deleted\n", zoneName)
	},
}

var cloneDst string

var zoneCloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Clone a zone's records into a new zone",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		if cloneDst == "" {
			fatal(fmt.Errorf("--to is required"))
		}
		if _, err := mgr.CloneZone(zoneName, cloneDst); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s cloned to %s\n", zoneName, cloneDst)
	},
}

var convertTo string

var zoneConvertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a zone to a different apex type",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		zt, ok := parseZoneType(convertTo)
		if !ok {
			fatal(fmt.Errorf("unknown zone type %q", convertTo))
		}
		if err := mgr.ConvertZoneType(zoneName, zt); err != nil {
			fatal(err)
		}
		fmt.Printf("zone %s converted to %s\n", zoneName, zt)
	},
}

var zoneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all zones",
	Run: func(cmd *cobra.Command, args []string) {
		for _, zi := range mgr.GetAllZones() {
			fmt.Printf("%-40s %-10s dnssec=%-12s disabled=%v\n", zi.Name, zi.Type, zi.Dnssec, zi.Disabled)
		}
	},
}

var zoneSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Queue a zone for its debounced disk save",
	Run: func(cmd *cobra.Command, args []string) {
		requireZone()
		mgr.SaveZoneFile(zoneName)
		fmt.Printf("zone %s queued for save\n", zoneName)
	},
}

func init() {
	zoneCreatePrimaryCmd.Flags().StringVar(&primaryNS, "primary-ns", "", "primary nameserver name")
	zoneCreatePrimaryCmd.Flags().StringVar(&adminMbox, "admin-mbox", "", "SOA admin mailbox")
	zoneCreateSecondaryCmd.Flags().StringVar(&upstream, "upstream", "", "upstream primary address")
	zoneCreateStubCmd.Flags().StringVar(&upstream, "upstream", "", "upstream primary address")
	zoneCloneCmd.Flags().StringVar(&cloneDst, "to", "", "destination zone name")
	zoneConvertCmd.Flags().StringVar(&convertTo, "to", "", "target zone type (primary|secondary|stub|forwarder)")

	zoneCmd.AddCommand(
		zoneCreatePrimaryCmd, zoneCreateSecondaryCmd, zoneCreateStubCmd, zoneCreateForwarderCmd,
		zoneDeleteCmd, zoneCloneCmd, zoneConvertCmd, zoneListCmd, zoneSaveCmd,
	)
}

func requireZone() {
	if zoneName == "" {
		fatal(fmt.Errorf("--zone is required"))
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func parseZoneType(s string) (zone.ZoneType, bool) {
	switch s {
	case "primary":
		return zone.Primary, true
	case "secondary":
		return zone.Secondary, true
	case "stub":
		return zone.Stub, true
	case "forwarder":
		return zone.Forwarder, true
	default:
		return 0, false
	}
}
