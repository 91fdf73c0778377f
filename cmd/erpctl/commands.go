package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"bitbucket.org/lestage/erp_backend/config"
	"bitbucket.org/lestage/erp_backend/models"
	"bitbucket.org/lestage/erp_backend/utils"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var errDryRun = errors.New("dry run")

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "AutoMigrate every table and seed the built-in document types",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := connect()
		if err := models.MigrateTable(db); err != nil {
			return err
		}
		if err := models.SeedDefaultDocumentTypes(cmd.Context(), db); err != nil {
			return err
		}
		config.GetLogger().WithFields(logrus.Fields{"field": "migrations"}).Info("migration finished")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed-reference [workbook.xlsx]",
	Short: "Upsert tax rates, currencies, document types and payment terms",
	Long: `Seeds the built-in document type catalog, then, when a workbook is given,
upserts the config_iva, config_moneda, config_documentos_maestro and
config_plazo_pago sheets in a single transaction.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db := connect()
		if err := models.SeedDefaultDocumentTypes(ctx, db); err != nil {
			return err
		}
		if len(args) == 0 {
			return nil
		}
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		summary, err := models.ImportReferenceWorkbook(ctx, db, f)
		if err != nil {
			return err
		}
		config.GetLogger().WithFields(logrus.Fields{
			"file":           args[0],
			"tax_rates":      summary.TaxRates,
			"currencies":     summary.Currencies,
			"document_types": summary.DocumentTypes,
			"payment_terms":  summary.PaymentTerms,
		}).Info("reference data imported")
		return nil
	},
}

var nextIdCmd = &cobra.Command{
	Use:   "next-id",
	Short: "Print the transaction id the next commit would receive",
	RunE: func(cmd *cobra.Command, args []string) error {
		month, _ := cmd.Flags().GetString("month")
		at := time.Now()
		if month != "" {
			parsed, err := time.Parse("2006-01", month)
			if err != nil {
				return fmt.Errorf("invalid --month %q, want YYYY-MM", month)
			}
			at = parsed
		}
		id, err := previewNextId(cmd.Context(), connect(), models.TransactionPrefix(at))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for API calls",
	RunE: func(cmd *cobra.Command, args []string) error {
		userId, _ := cmd.Flags().GetInt("user-id")
		username, _ := cmd.Flags().GetString("username")
		role, _ := cmd.Flags().GetString("role")
		token, err := utils.JwtGenerate(userId, username, role)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	nextIdCmd.Flags().String("month", "", "month to check as YYYY-MM (default: current month)")

	tokenCmd.Flags().Int("user-id", 1, "user id stamped on committed documents")
	tokenCmd.Flags().String("username", "erpctl", "username claim")
	tokenCmd.Flags().String("role", "admin", "role claim")

	rootCmd.AddCommand(migrateCmd, seedCmd, nextIdCmd, tokenCmd)
}

func connect() *gorm.DB {
	config.ConnectDatabaseWithRetry()
	return config.GetDB()
}

// previewNextId allocates inside a transaction that is always rolled back.
func previewNextId(ctx context.Context, db *gorm.DB, prefix string) (string, error) {
	var id string
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		id, err = models.DBSequenceAllocator{}.Next(ctx, tx, prefix)
		if err != nil {
			return err
		}
		return errDryRun
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return "", err
	}
	return id, nil
}
