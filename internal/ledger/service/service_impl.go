package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/creditera/cobranza/internal/clock"
	ledgerdomain "github.com/creditera/cobranza/internal/ledger/domain"
	obsmetrics "github.com/creditera/cobranza/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Post(ctx context.Context, tx *gorm.DB, entry ledgerdomain.Entry) (snowflake.ID, error) {
	if err := entry.Validate(); err != nil {
		return 0, err
	}
	if err := s.ensureAccountsExist(ctx, tx, entry.Lines); err != nil {
		return 0, err
	}

	entryID := s.genID.Generate()
	now := s.clock.Now().UTC()

	// ON CONFLICT ... DO NOTHING is postgres and sqlite syntax; the
	// mysql dialect in pkg/db does not cover the ledger.
	result := tx.WithContext(ctx).Exec(
		`INSERT INTO journal_entries (
			id, source_type, source_id, currency, description, created_by, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (source_type, source_id) DO NOTHING`,
		entryID,
		string(entry.SourceType),
		entry.SourceID,
		entry.Currency,
		entry.Description,
		entry.CreatedBy,
		entry.OccurredAt.UTC(),
		now,
	)
	if result.Error != nil {
		return 0, fmt.Errorf("insert journal entry: %w", result.Error)
	}

	// Zero rows affected means this source event was already posted.
	if result.RowsAffected == 0 {
		var existing ledgerdomain.JournalEntry
		if err := tx.WithContext(ctx).
			First(&existing, "source_type = ? AND source_id = ?", entry.SourceType, entry.SourceID).Error; err != nil {
			return 0, fmt.Errorf("load existing journal entry: %w", err)
		}
		s.log.Info("journal entry already posted",
			zap.String("source_type", string(entry.SourceType)),
			zap.String("source_id", entry.SourceID.String()),
		)
		return existing.ID, nil
	}

	for _, line := range entry.Lines {
		if err := tx.WithContext(ctx).Exec(
			`INSERT INTO journal_lines (
				id, journal_entry_id, account_code, debit, credit, description, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			s.genID.Generate(),
			entryID,
			string(line.AccountCode),
			line.Debit,
			line.Credit,
			line.Description,
			now,
		).Error; err != nil {
			return 0, fmt.Errorf("insert journal line: %w", err)
		}
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordJournalEntry(ctx, string(entry.SourceType))
	}
	s.log.Info("journal entry posted",
		zap.String("journal_entry_id", entryID.String()),
		zap.String("source_type", string(entry.SourceType)),
		zap.String("source_id", entry.SourceID.String()),
		zap.Int("lines", len(entry.Lines)),
	)
	return entryID, nil
}

func (s *Service) Reverse(ctx context.Context, tx *gorm.DB, entryID snowflake.ID, description string) (snowflake.ID, error) {
	var original ledgerdomain.JournalEntry
	err := tx.WithContext(ctx).First(&original, "id = ?", entryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ledgerdomain.ErrEntryNotFound
	}
	if err != nil {
		return 0, err
	}

	var lines []ledgerdomain.JournalLine
	if err := tx.WithContext(ctx).
		Where("journal_entry_id = ?", entryID).
		Order("id asc").
		Find(&lines).Error; err != nil {
		return 0, err
	}

	reversed := make([]ledgerdomain.Line, 0, len(lines))
	for _, line := range lines {
		reversed = append(reversed, ledgerdomain.Line{
			AccountCode: line.AccountCode,
			Debit:       line.Credit,
			Credit:      line.Debit,
			Description: "reversal: " + line.Description,
		})
	}

	return s.Post(ctx, tx, ledgerdomain.Entry{
		SourceType:  ledgerdomain.SourceTypeReversal,
		SourceID:    entryID,
		Currency:    original.Currency,
		Description: description,
		OccurredAt:  s.clock.Now().UTC(),
		Lines:       reversed,
	})
}

func (s *Service) Lines(ctx context.Context, entryID snowflake.ID) ([]ledgerdomain.JournalLine, error) {
	var lines []ledgerdomain.JournalLine
	err := s.db.WithContext(ctx).
		Where("journal_entry_id = ?", entryID).
		Order("id asc").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (s *Service) TrialBalance(ctx context.Context) ([]ledgerdomain.AccountBalance, error) {
	var balances []ledgerdomain.AccountBalance
	err := s.db.WithContext(ctx).
		Model(&ledgerdomain.JournalLine{}).
		Select("account_code, SUM(debit) AS debits, SUM(credit) AS credits").
		Group("account_code").
		Order("account_code asc").
		Scan(&balances).Error
	if err != nil {
		return nil, err
	}
	return balances, nil
}

func (s *Service) ensureAccountsExist(ctx context.Context, tx *gorm.DB, lines []ledgerdomain.Line) error {
	codes := make([]ledgerdomain.AccountCode, 0, len(lines))
	seen := make(map[ledgerdomain.AccountCode]bool, len(lines))
	for _, line := range lines {
		if !seen[line.AccountCode] {
			seen[line.AccountCode] = true
			codes = append(codes, line.AccountCode)
		}
	}

	var count int64
	if err := tx.WithContext(ctx).
		Model(&ledgerdomain.Account{}).
		Where("code IN ?", codes).
		Count(&count).Error; err != nil {
		return err
	}
	if count != int64(len(codes)) {
		return ledgerdomain.ErrUnknownAccount
	}
	return nil
}
