// Command venusdemo runs the venus frame loop on a registered backend.
package main

import (
	"os"

	"github.com/gogpu/venus/cmd/venusdemo/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
