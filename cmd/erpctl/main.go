// erpctl runs maintenance jobs against the document database: schema
// migration, reference data seeding and transaction id checks.
//
// Usage (from backend directory):
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/erpctl migrate
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "erpctl",
	Short:         "Maintenance commands for the ERP document backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "erpctl: %v\n", err)
		os.Exit(1)
	}
}
