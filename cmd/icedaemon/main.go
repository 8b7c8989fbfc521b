// Command icedaemon hosts an ICE agent described by an
// icedaemon.yml configuration file, spec.md Section 10's "daemon
// entrypoint", grounded on gortcd's cmd/gortcd (a one-line call into
// the cli package's Execute).
package main

import "github.com/netice/ice/internal/commands"

func main() {
	commands.Execute()
}
