// This program performs administrative tasks for the fraud registry ledger.
package main

import (
	"github.com/safeguard/fraudledger/app/tooling/admin/cmd"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {
	cmd.Execute(build)
}
