// Command zonectl is the administrative CLI for zonecore's zone
// manager, driving it in-process rather than through an HTTP API.
package main

import (
	"os"

	"github.com/stenstam/zonecore/cmd/zonectl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
