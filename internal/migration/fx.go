package migration

import (
	"time"

	"github.com/creditera/cobranza/internal/config"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// The versioned SQL is written for postgres; other dialects
			// are for local development and get the schema from the
			// models directly.
			if err := conn.AutoMigrate(
				&loandomain.Loan{},
				&loandomain.Installment{},
				&loandomain.Payment{},
				&ledgerdomain.Account{},
				&ledgerdomain.JournalEntry{},
				&ledgerdomain.JournalLine{},
			); err != nil {
				return err
			}
		}

		if err := seed.EnsureChartOfAccounts(conn); err != nil {
			return err
		}
		if cfg.SeedDemoData {
			return seed.EnsureDemoLoan(conn, time.Now())
		}
		return nil
	}),
)
