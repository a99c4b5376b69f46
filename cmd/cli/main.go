// ifctl is the operator CLI for the IFC job-orchestration gateway.
package main

import (
	"fmt"
	"os"

	"github.com/nuulab/ifcjobs/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
