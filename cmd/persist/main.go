// Command persist opens databases through the persist runtime and runs
// statements against them.
package main

import (
	"os"

	"github.com/syssam/persist/internal/cli"

	_ "github.com/syssam/persist/drivers/mysql"
	_ "github.com/syssam/persist/drivers/pgx"
	_ "github.com/syssam/persist/drivers/postgres"
	_ "github.com/syssam/persist/drivers/sqlite"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
