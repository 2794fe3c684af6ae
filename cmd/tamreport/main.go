// Command tamreport generates, validates and reconciles TAM RFE/Bug reports
// against the support case tool and the JIRA authority.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
