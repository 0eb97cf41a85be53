// Пакет service — бизнес-логика Preservation Module.
// PreservationService — приём уведомлений о сохранении и чтение истории сохранений.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
	"github.com/bigkaa/goartstore/preservation-module/internal/repository"
)

// Outcome — результат применения уведомления.
type Outcome string

const (
	// OutcomeCreated — создана новая запись о сохранении.
	OutcomeCreated Outcome = "created"
	// OutcomeUpdated — обновлена существующая запись.
	OutcomeUpdated Outcome = "updated"
)

// Значения лейбла outcome для неуспешных уведомлений.
const (
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

// Prometheus-метрики приёма уведомлений.
var (
	ingestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pm_ingest_total",
		Help: "Общее количество уведомлений о сохранении по результату обработки.",
	}, []string{"outcome"})
	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pm_ingest_duration_seconds",
		Help:    "Длительность обработки уведомлений о сохранении.",
		Buckets: prometheus.DefBuckets,
	})
)

// Resolver — разрешение внешнего PID во внутреннюю запись.
// Для неизвестного PID возвращает ошибку, оборачивающую model.ErrRecordNotFound.
type Resolver interface {
	Resolve(ctx context.Context, pid string) (*model.Record, error)
}

// PermissionPolicy — политика доступа к информации о сохранении записи.
type PermissionPolicy interface {
	CanRead(ctx context.Context, identity *model.Identity, record *model.Record) bool
	CanWrite(ctx context.Context, identity *model.Identity, record *model.Record) bool
	CanManage(ctx context.Context, identity *model.Identity, record *model.Record) bool
}

// Transactor выполняет fn с репозиторием, привязанным к одной транзакции.
// Реализуется repository.TxRunner.
type Transactor interface {
	WithPreservationTx(ctx context.Context, fn func(repo repository.PreservationRepository) error) error
}

// IngestRequest — разобранное уведомление платформы сохранения.
// nil у опционального поля означает «не передано».
type IngestRequest struct {
	// PID — внешний идентификатор записи (обязательный)
	PID string
	// RevisionID — номер ревизии (обязательный, >= 0)
	RevisionID *int
	// Status — код или имя статуса (обязательный)
	Status string
	// ArchiveTimestamp — время архивации (часть естественного ключа)
	ArchiveTimestamp *time.Time
	// HarvestTimestamp — время сбора содержимого
	HarvestTimestamp *time.Time
	URI              *string
	Path             *string
	Description      model.Description
	// EventID — UUID записи в журнале входящих событий
	EventID *string
}

// UIConfig — параметры описания внешнего ресурса для интерфейса записи.
type UIConfig struct {
	// Title — заголовок ссылки
	Title string
	// Link — ссылка вместо URI архивной копии (пусто — URI)
	Link string
	// IconURL — URL иконки (пусто — без иконки)
	IconURL string
	// ManagerLinkOverride — Link применяется и к управляющим записью
	ManagerLinkOverride bool
}

// ExternalResource — ссылка на архивную копию для страницы записи.
type ExternalResource struct {
	Content ExternalResourceContent `json:"content"`
}

// ExternalResourceContent — содержимое описания внешнего ресурса.
type ExternalResourceContent struct {
	URL      *string `json:"url"`
	Title    string  `json:"title"`
	Subtitle string  `json:"subtitle"`
	Icon     *string `json:"icon"`
	Section  string  `json:"section"`
}

// externalResourceSection — раздел страницы записи для ссылки на архив.
const externalResourceSection = "Preserved in"

// PreservationService — сервис приёма уведомлений и чтения истории сохранений.
type PreservationService struct {
	repo     repository.PreservationRepository
	tx       Transactor
	resolver Resolver
	policy   PermissionPolicy
	enabled  bool
	ui       UIConfig
	logger   *slog.Logger
}

// NewPreservationService создаёт сервис сохранений.
// repo используется для чтения, tx — для приёма уведомлений.
// enabled=false отключает приём уведомлений (чтение остаётся доступным).
func NewPreservationService(
	repo repository.PreservationRepository,
	tx Transactor,
	resolver Resolver,
	policy PermissionPolicy,
	enabled bool,
	ui UIConfig,
	logger *slog.Logger,
) *PreservationService {
	return &PreservationService{
		repo:     repo,
		tx:       tx,
		resolver: resolver,
		policy:   policy,
		enabled:  enabled,
		ui:       ui,
		logger:   logger.With(slog.String("component", "preservation_service")),
	}
}

// Enabled сообщает, включён ли приём уведомлений.
func (s *PreservationService) Enabled() bool {
	return s.enabled
}

// Ingest применяет уведомление о сохранении: создаёт новую запись,
// обновляет существующую или отклоняет повтор (ErrDuplicateNotification).
func (s *PreservationService) Ingest(
	ctx context.Context,
	identity *model.Identity,
	req IngestRequest,
) (*model.PreservationRecord, Outcome, error) {
	start := time.Now()
	defer func() { ingestDuration.Observe(time.Since(start).Seconds()) }()

	p, outcome, err := s.ingest(ctx, identity, req)
	switch {
	case err == nil:
		ingestTotal.WithLabelValues(string(outcome)).Inc()
	case errors.Is(err, ErrDuplicateNotification):
		ingestTotal.WithLabelValues(outcomeDuplicate).Inc()
	default:
		ingestTotal.WithLabelValues(outcomeRejected).Inc()
	}
	return p, outcome, err
}

func (s *PreservationService) ingest(
	ctx context.Context,
	identity *model.Identity,
	req IngestRequest,
) (*model.PreservationRecord, Outcome, error) {
	if !s.enabled {
		return nil, "", ErrModuleDisabled
	}

	status, err := validateIngest(req)
	if err != nil {
		return nil, "", err
	}

	record, err := s.resolve(ctx, req.PID)
	if err != nil {
		return nil, "", err
	}

	if !s.policy.CanWrite(ctx, identity, record) {
		return nil, "", fmt.Errorf("%w: запись %s", ErrPermissionDenied, req.PID)
	}

	archived := model.TruncateTimestamp(req.ArchiveTimestamp)
	var (
		result  *model.PreservationRecord
		outcome Outcome
	)

	err = s.tx.WithPreservationTx(ctx, func(repo repository.PreservationRepository) error {
		existing, err := repo.FindExisting(ctx, record.ID, *req.RevisionID, archived)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		if existing == nil {
			p := &model.PreservationRecord{
				RecordID:         record.ID,
				RevisionID:       *req.RevisionID,
				Status:           status,
				HarvestTimestamp: req.HarvestTimestamp,
				ArchiveTimestamp: archived,
				URI:              req.URI,
				Path:             req.Path,
				EventID:          req.EventID,
				Description:      req.Description,
			}
			err := repo.Create(ctx, p)
			if err == nil {
				result, outcome = p, OutcomeCreated
				return nil
			}
			if !errors.Is(err, repository.ErrConflict) {
				return err
			}

			// Запись создана параллельным уведомлением — переходим к обновлению
			s.logger.Debug("Конфликт естественного ключа, повторное чтение",
				slog.String("record_id", record.ID),
				slog.Int("revision_id", *req.RevisionID),
			)
			existing, err = repo.FindExisting(ctx, record.ID, *req.RevisionID, archived)
			if err != nil {
				return fmt.Errorf("повторное чтение после конфликта: %w", err)
			}
		}

		patch := repository.PreservationPatch{
			Status:           &status,
			HarvestTimestamp: req.HarvestTimestamp,
			URI:              req.URI,
			Path:             req.Path,
			Description:      req.Description,
			EventID:          req.EventID,
		}
		if err := repo.Update(ctx, existing, patch); err != nil {
			if errors.Is(err, repository.ErrAlreadyReceived) {
				return fmt.Errorf("%w: ревизия %d записи %s", ErrDuplicateNotification, existing.RevisionID, req.PID)
			}
			return err
		}
		result, outcome = existing, OutcomeUpdated
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrDuplicateNotification) {
			err = fmt.Errorf("сохранение информации о сохранении: %w", err)
		}
		return nil, "", err
	}

	s.logger.Info("Уведомление о сохранении применено",
		slog.String("pid", req.PID),
		slog.String("record_id", record.ID),
		slog.Int("revision_id", result.RevisionID),
		slog.String("status", string(result.Status)),
		slog.String("outcome", string(outcome)),
	)

	return result, outcome, nil
}

// List возвращает всю историю сохранений записи, новые первыми.
// Пустая история — успешный результат.
func (s *PreservationService) List(ctx context.Context, identity *model.Identity, pid string) ([]*model.PreservationRecord, error) {
	record, err := s.authorizeRead(ctx, identity, pid)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.ListByRecord(ctx, record.ID)
	if err != nil {
		return nil, fmt.Errorf("получение истории сохранений: %w", err)
	}
	return items, nil
}

// Latest возвращает последнюю запись о сохранении или nil, если записей нет.
func (s *PreservationService) Latest(ctx context.Context, identity *model.Identity, pid string) (*model.PreservationRecord, error) {
	record, err := s.authorizeRead(ctx, identity, pid)
	if err != nil {
		return nil, err
	}
	return s.latest(ctx, record)
}

// ExternalResource возвращает ссылку на архивную копию для страницы записи.
// Ссылка показывается, если последняя копия в статусе PRESERVED
// или субъект управляет записью. Иначе — пустой список.
func (s *PreservationService) ExternalResource(ctx context.Context, identity *model.Identity, pid string) ([]ExternalResource, error) {
	record, err := s.authorizeRead(ctx, identity, pid)
	if err != nil {
		return nil, err
	}

	latest, err := s.latest(ctx, record)
	if err != nil {
		return nil, err
	}

	canManage := s.policy.CanManage(ctx, identity, record)
	if latest == nil || (latest.Status != model.StatusPreserved && !canManage) {
		return []ExternalResource{}, nil
	}

	url := latest.URI
	if s.ui.Link != "" && (s.ui.ManagerLinkOverride || !canManage) {
		link := s.ui.Link
		url = &link
	}

	var icon *string
	if s.ui.IconURL != "" {
		iconURL := s.ui.IconURL
		icon = &iconURL
	}

	return []ExternalResource{{
		Content: ExternalResourceContent{
			URL:      url,
			Title:    s.ui.Title,
			Subtitle: latest.Status.Name(),
			Icon:     icon,
			Section:  externalResourceSection,
		},
	}}, nil
}

// latest читает последнюю запись; отсутствие записей — nil, nil.
func (s *PreservationService) latest(ctx context.Context, record *model.Record) (*model.PreservationRecord, error) {
	p, err := s.repo.LatestByRecord(ctx, record.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("получение последней записи о сохранении: %w", err)
	}
	return p, nil
}

// authorizeRead разрешает PID и проверяет право чтения.
func (s *PreservationService) authorizeRead(ctx context.Context, identity *model.Identity, pid string) (*model.Record, error) {
	if strings.TrimSpace(pid) == "" {
		return nil, fmt.Errorf("%w: пустой pid", ErrMalformedRequest)
	}

	record, err := s.resolve(ctx, pid)
	if err != nil {
		return nil, err
	}

	if !s.policy.CanRead(ctx, identity, record) {
		return nil, fmt.Errorf("%w: запись %s", ErrPermissionDenied, pid)
	}
	return record, nil
}

// resolve разрешает PID через resolver.
func (s *PreservationService) resolve(ctx context.Context, pid string) (*model.Record, error) {
	record, err := s.resolver.Resolve(ctx, pid)
	if err != nil {
		if errors.Is(err, ErrReferenceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("разрешение PID %q: %w", pid, err)
	}
	if record == nil || record.ID == "" {
		return nil, fmt.Errorf("%w: %q", ErrReferenceNotFound, pid)
	}
	return record, nil
}

// validateIngest проверяет обязательные поля и разбирает статус.
// Выполняется до обращения к resolver и хранилищу.
func validateIngest(req IngestRequest) (model.PreservationStatus, error) {
	var missing []string
	if strings.TrimSpace(req.PID) == "" {
		missing = append(missing, "pid")
	}
	if req.RevisionID == nil {
		missing = append(missing, "revision_id")
	}
	if strings.TrimSpace(req.Status) == "" {
		missing = append(missing, "status")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: отсутствуют обязательные поля: %s", ErrMalformedRequest, strings.Join(missing, ", "))
	}

	if *req.RevisionID < 0 {
		return "", fmt.Errorf("%w: revision_id должен быть >= 0, получено %d", ErrMalformedRequest, *req.RevisionID)
	}

	if req.URI != nil && len(*req.URI) > maxLocationLength {
		return "", fmt.Errorf("%w: uri длиннее %d символов", ErrMalformedRequest, maxLocationLength)
	}
	if req.Path != nil && len(*req.Path) > maxLocationLength {
		return "", fmt.Errorf("%w: path длиннее %d символов", ErrMalformedRequest, maxLocationLength)
	}

	status, err := model.ParseStatus(req.Status)
	if err != nil {
		return "", err
	}
	return status, nil
}

// maxLocationLength — ограничение колонок uri и path (VARCHAR(255)).
const maxLocationLength = 255
