package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
)

// PreservationRepository — интерфейс для таблицы preservation_info.
type PreservationRepository interface {
	// Create создаёт новую запись о сохранении с новым UUID.
	Create(ctx context.Context, p *model.PreservationRecord) error
	// FindExisting ищет запись по естественному ключу (record_id, revision_id, archive_timestamp).
	FindExisting(ctx context.Context, recordID string, revisionID int, archiveTimestamp *time.Time) (*model.PreservationRecord, error)
	// Update применяет частичное обновление. Без изменений — ErrAlreadyReceived.
	Update(ctx context.Context, p *model.PreservationRecord, patch PreservationPatch) error
	// ListByRecord возвращает все записи по записи владеющей платформы, новые первыми.
	ListByRecord(ctx context.Context, recordID string) ([]*model.PreservationRecord, error)
	// LatestByRecord возвращает первую запись в порядке ListByRecord.
	LatestByRecord(ctx context.Context, recordID string) (*model.PreservationRecord, error)
}

// PreservationPatch — частичное обновление записи о сохранении.
// nil-поле означает «не передано»: текущее значение не меняется.
// EventID перезаписывается всегда, если изменение применяется.
type PreservationPatch struct {
	Status           *model.PreservationStatus
	HarvestTimestamp *time.Time
	URI              *string
	Path             *string
	Description      model.Description
	EventID          *string
}

// preservationColumns — порядок колонок для SELECT и scanPreservation.
const preservationColumns = `id, record_id, revision_id, status, harvest_timestamp,
	archive_timestamp, uri, path, event_id, description, created_at, updated_at`

// preservationOrder — порядок «самая свежая запись первой».
const preservationOrder = `ORDER BY revision_id DESC, archive_timestamp DESC NULLS LAST, created_at DESC`

// preservationRepo — реализация PreservationRepository.
type preservationRepo struct {
	db DBTX
}

// NewPreservationRepository создаёт репозиторий записей о сохранении.
func NewPreservationRepository(db DBTX) PreservationRepository {
	return &preservationRepo{db: db}
}

func (r *preservationRepo) Create(ctx context.Context, p *model.PreservationRecord) error {
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidStatus, p.Status)
	}

	p.ID = uuid.New().String()
	p.HarvestTimestamp = model.TruncateTimestamp(p.HarvestTimestamp)
	p.ArchiveTimestamp = model.TruncateTimestamp(p.ArchiveTimestamp)
	p.Description = p.Description.OrEmpty()

	query := `
		INSERT INTO preservation_info (id, record_id, revision_id, status, harvest_timestamp,
			archive_timestamp, uri, path, event_id, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT ON CONSTRAINT preservation_info_natural_key DO NOTHING
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		p.ID, p.RecordID, p.RevisionID, p.Status, p.HarvestTimestamp,
		p.ArchiveTimestamp, p.URI, p.Path, p.EventID, p.Description,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return fmt.Errorf("%w: запись о сохранении ревизии %d уже существует", ErrConflict, p.RevisionID)
		}
		return fmt.Errorf("ошибка создания записи о сохранении: %w", err)
	}
	return nil
}

func (r *preservationRepo) FindExisting(ctx context.Context, recordID string, revisionID int, archiveTimestamp *time.Time) (*model.PreservationRecord, error) {
	query := `
		SELECT ` + preservationColumns + `
		FROM preservation_info
		WHERE record_id = $1 AND revision_id = $2
			AND archive_timestamp IS NOT DISTINCT FROM $3`

	p, err := scanPreservation(r.db.QueryRow(ctx, query,
		recordID, revisionID, model.TruncateTimestamp(archiveTimestamp)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка поиска записи о сохранении: %w", err)
	}
	return p, nil
}

func (r *preservationRepo) Update(ctx context.Context, p *model.PreservationRecord, patch PreservationPatch) error {
	next := ApplyPatch(p, patch)
	if SameState(p, next) {
		return ErrAlreadyReceived
	}

	query := `
		UPDATE preservation_info
		SET status = $2, harvest_timestamp = $3, uri = $4, path = $5,
			description = $6, event_id = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.db.QueryRow(ctx, query,
		next.ID, next.Status, next.HarvestTimestamp, next.URI, next.Path,
		next.Description, next.EventID,
	).Scan(&next.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("ошибка обновления записи о сохранении: %w", err)
	}

	*p = *next
	return nil
}

func (r *preservationRepo) ListByRecord(ctx context.Context, recordID string) ([]*model.PreservationRecord, error) {
	query := `
		SELECT ` + preservationColumns + `
		FROM preservation_info
		WHERE record_id = $1
		` + preservationOrder

	rows, err := r.db.Query(ctx, query, recordID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка сохранений: %w", err)
	}
	defer rows.Close()

	result := make([]*model.PreservationRecord, 0)
	for rows.Next() {
		p, err := scanPreservation(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи о сохранении: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func (r *preservationRepo) LatestByRecord(ctx context.Context, recordID string) (*model.PreservationRecord, error) {
	query := `
		SELECT ` + preservationColumns + `
		FROM preservation_info
		WHERE record_id = $1
		` + preservationOrder + `
		LIMIT 1`

	p, err := scanPreservation(r.db.QueryRow(ctx, query, recordID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения последней записи о сохранении: %w", err)
	}
	return p, nil
}

// ApplyPatch возвращает копию p с применёнными переданными полями патча.
func ApplyPatch(p *model.PreservationRecord, patch PreservationPatch) *model.PreservationRecord {
	next := *p
	if patch.Status != nil {
		next.Status = *patch.Status
	}
	if patch.HarvestTimestamp != nil {
		next.HarvestTimestamp = model.TruncateTimestamp(patch.HarvestTimestamp)
	}
	if patch.URI != nil {
		next.URI = patch.URI
	}
	if patch.Path != nil {
		next.Path = patch.Path
	}
	if patch.Description != nil {
		next.Description = patch.Description
	}
	next.Description = next.Description.OrEmpty()
	next.EventID = patch.EventID
	return &next
}

// SameState сравнивает сохраняемые поля двух состояний записи.
// EventID, ID и служебные времена не участвуют в сравнении.
func SameState(a, b *model.PreservationRecord) bool {
	return a.Status == b.Status &&
		model.SameTimestamp(a.HarvestTimestamp, b.HarvestTimestamp) &&
		model.SameString(a.URI, b.URI) &&
		model.SameString(a.Path, b.Path) &&
		a.Description.Equal(b.Description)
}

// rowScanner — общий интерфейс pgx.Row и pgx.Rows для сканирования.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanPreservation читает строку preservation_info в порядке preservationColumns.
func scanPreservation(row rowScanner) (*model.PreservationRecord, error) {
	p := &model.PreservationRecord{}
	err := row.Scan(
		&p.ID, &p.RecordID, &p.RevisionID, &p.Status, &p.HarvestTimestamp,
		&p.ArchiveTimestamp, &p.URI, &p.Path, &p.EventID, &p.Description,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.HarvestTimestamp = utcTimestamp(p.HarvestTimestamp)
	p.ArchiveTimestamp = utcTimestamp(p.ArchiveTimestamp)
	p.Description = p.Description.OrEmpty()
	return p, nil
}

// utcTimestamp переводит прочитанное из БД время в UTC.
func utcTimestamp(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
