package sync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	common_models "go-edu/internal/common/models"
	"go-edu/internal/config"
	"go-edu/internal/features/audit"
	"go-edu/internal/features/institution"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// legacyTypes maps the UTIS type keys onto the hierarchy's institution
// types, in import order: parents must exist before their children.
var legacyTypes = map[string]string{
	"nazirlik": institution.TypeMinistry,
	"region":   institution.TypeRegion,
	"sektor":   institution.TypeSector,
	"mekteb":   institution.TypeSchool,
}

var typeOrder = map[string]int{
	institution.TypeMinistry: 1,
	institution.TypeRegion:   2,
	institution.TypeSector:   3,
	institution.TypeSchool:   4,
}

type SyncService interface {
	// RunImport pulls institutions from the legacy UTIS database and
	// upserts them into the hierarchy, matching on UTIS code.
	RunImport(ctx context.Context) (*SyncLog, error)
	ListLogs(ctx context.Context, limit int64) ([]SyncLog, error)
}

type SyncServiceImpl struct {
	Cfg             *config.Config
	LogRepo         SyncLogRepository
	InstitutionRepo institution.InstitutionRepository
	AuditService    audit.AuditService
	Logger          *zap.Logger
}

func NewSyncService(cfg *config.Config, logRepo SyncLogRepository, institutionRepo institution.InstitutionRepository, auditService audit.AuditService, logger *zap.Logger) SyncService {
	return &SyncServiceImpl{
		Cfg:             cfg,
		LogRepo:         logRepo,
		InstitutionRepo: institutionRepo,
		AuditService:    auditService,
		Logger:          logger,
	}
}

func (s *SyncServiceImpl) ListLogs(ctx context.Context, limit int64) ([]SyncLog, error) {
	return s.LogRepo.List(ctx, limit)
}

func (s *SyncServiceImpl) RunImport(ctx context.Context) (*SyncLog, error) {
	if s.Cfg.LegacyPgDSN == "" {
		return nil, fmt.Errorf("legacy import is not configured: LEGACY_PG_DSN is empty")
	}

	log := &SyncLog{
		Source:    "utis",
		StartTime: time.Now(),
		Status:    "in_progress",
	}
	_ = s.LogRepo.Create(ctx, log)

	var syncError error
	defer func() {
		log.EndTime = time.Now()
		if syncError != nil {
			log.Status = "failed"
			log.Error = syncError.Error()
		} else {
			log.Status = "success"
		}
		_ = s.LogRepo.Update(ctx, log)

		_ = s.AuditService.LogChange(ctx, common_models.AuditActionSync, "institutions", log.ID.Hex(), map[string]common_models.Change{
			"status":    {New: log.Status},
			"processed": {New: log.ProcessedCount},
			"created":   {New: log.CreatedCount},
			"updated":   {New: log.UpdatedCount},
		})
	}()

	rows, err := s.fetchLegacyRows(ctx)
	if err != nil {
		syncError = err
		return log, err
	}

	// Parents first so a child always finds its parent by UTIS code.
	sort.SliceStable(rows, func(i, j int) bool {
		return typeOrder[legacyTypes[rows[i].TypeKey]] < typeOrder[legacyTypes[rows[j].TypeKey]]
	})

	for _, row := range rows {
		log.ProcessedCount++
		instType, known := legacyTypes[row.TypeKey]
		if !known {
			log.SkippedCount++
			s.Logger.Warn("legacy import: unknown institution type",
				zap.String("utis_code", row.UtisCode),
				zap.String("type", row.TypeKey))
			continue
		}

		if err := s.upsert(ctx, row, instType, log); err != nil {
			log.SkippedCount++
			s.Logger.Warn("legacy import: row skipped",
				zap.String("utis_code", row.UtisCode),
				zap.Error(err))
		}
	}

	s.Logger.Info("legacy import finished",
		zap.Int("processed", log.ProcessedCount),
		zap.Int("created", log.CreatedCount),
		zap.Int("updated", log.UpdatedCount),
		zap.Int("skipped", log.SkippedCount))
	return log, nil
}

func (s *SyncServiceImpl) fetchLegacyRows(ctx context.Context) ([]legacyRow, error) {
	db, err := sql.Open("postgres", s.Cfg.LegacyPgDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach legacy database: %w", err)
	}

	query := `
		SELECT utis_code, name, COALESCE(short_name, ''), type_key,
		       COALESCE(parent_utis_code, ''), is_active
		FROM institutions
		ORDER BY utis_code`
	result, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query legacy institutions: %w", err)
	}
	defer result.Close()

	var rows []legacyRow
	for result.Next() {
		var row legacyRow
		if err := result.Scan(&row.UtisCode, &row.Name, &row.ShortName, &row.TypeKey, &row.ParentUtisCode, &row.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan legacy row: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, result.Err()
}

func (s *SyncServiceImpl) upsert(ctx context.Context, row legacyRow, instType string, log *SyncLog) error {
	var parent *institution.Institution
	if row.ParentUtisCode != "" {
		found, err := s.InstitutionRepo.FindByUtisCode(ctx, row.ParentUtisCode)
		if err != nil {
			return fmt.Errorf("parent %s not found: %w", row.ParentUtisCode, err)
		}
		parent = found
	}

	existing, err := s.InstitutionRepo.FindByUtisCode(ctx, row.UtisCode)
	if err != nil && !errors.Is(err, institution.ErrNodeNotFound) {
		return err
	}

	if existing != nil {
		existing.Name = row.Name
		existing.ShortName = row.ShortName
		existing.IsActive = row.IsActive
		if err := s.InstitutionRepo.Update(ctx, existing); err != nil {
			return err
		}
		log.UpdatedCount++
		return nil
	}

	inst := &institution.Institution{
		Name:      row.Name,
		ShortName: row.ShortName,
		Type:      instType,
		UtisCode:  row.UtisCode,
		IsActive:  row.IsActive,
		Level:     1,
	}
	if parent != nil {
		inst.ParentID = &parent.ID
		inst.Level = parent.Level + 1
	}
	if inst.Level > institution.MaxTreeDepth {
		return fmt.Errorf("legacy row would exceed the maximum tree depth")
	}
	if err := s.InstitutionRepo.Create(ctx, inst); err != nil {
		return err
	}
	log.CreatedCount++
	return nil
}
