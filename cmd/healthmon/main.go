// healthmon stores host health readings and analyses their history.
package main

import (
	"os"

	"github.com/xtxerr/healthmon/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
