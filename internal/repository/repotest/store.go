// Пакет repotest — in-memory реализация репозиториев для unit-тестов
// сервисного и HTTP-слоёв. Повторяет семантику PostgreSQL-реализации:
// естественный ключ с NULLS NOT DISTINCT, порядок «новые первыми»,
// откат транзакции при ошибке.
package repotest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
	"github.com/bigkaa/goartstore/preservation-module/internal/repository"
)

// storedPreservation — запись и порядковый номер вставки (аналог created_at).
type storedPreservation struct {
	rec model.PreservationRecord
	seq int
}

// Store — in-memory хранилище preservation_info и preservation_events.
// Реализует repository.PreservationRepository, repository.EventRepository
// и WithPreservationTx.
type Store struct {
	mu      sync.Mutex
	records []storedPreservation
	events  map[string]model.PreservationEvent
	order   []string
	seq     int
	calls   int
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{events: make(map[string]model.PreservationEvent)}
}

// Calls возвращает количество обращений к preservation_info.
func (s *Store) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Len возвращает количество записей о сохранении.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Event возвращает событие журнала по ID.
func (s *Store) Event(id string) (model.PreservationEvent, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.events[id]
	return e, ok
}

// EventLog возвращает события журнала в порядке поступления.
func (s *Store) EventLog() []model.PreservationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := make([]model.PreservationEvent, 0, len(s.order))
	for _, id := range s.order {
		log = append(log, s.events[id])
	}
	return log
}

// WithPreservationTx выполняет fn над копией данных и применяет её только при успехе.
func (s *Store) WithPreservationTx(ctx context.Context, fn func(repo repository.PreservationRepository) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := &txView{store: s, records: append([]storedPreservation(nil), s.records...), seq: s.seq}
	if err := fn(work); err != nil {
		return err
	}
	s.records = work.records
	s.seq = work.seq
	return nil
}

// --- PreservationRepository вне транзакции ---

func (s *Store) Create(ctx context.Context, p *model.PreservationRecord) error {
	return s.WithPreservationTx(ctx, func(repo repository.PreservationRepository) error {
		return repo.Create(ctx, p)
	})
}

func (s *Store) FindExisting(ctx context.Context, recordID string, revisionID int, archiveTimestamp *time.Time) (*model.PreservationRecord, error) {
	var found *model.PreservationRecord
	err := s.WithPreservationTx(ctx, func(repo repository.PreservationRepository) error {
		var err error
		found, err = repo.FindExisting(ctx, recordID, revisionID, archiveTimestamp)
		return err
	})
	return found, err
}

func (s *Store) Update(ctx context.Context, p *model.PreservationRecord, patch repository.PreservationPatch) error {
	return s.WithPreservationTx(ctx, func(repo repository.PreservationRepository) error {
		return repo.Update(ctx, p, patch)
	})
}

func (s *Store) ListByRecord(ctx context.Context, recordID string) ([]*model.PreservationRecord, error) {
	var list []*model.PreservationRecord
	err := s.WithPreservationTx(ctx, func(repo repository.PreservationRepository) error {
		var err error
		list, err = repo.ListByRecord(ctx, recordID)
		return err
	})
	return list, err
}

func (s *Store) LatestByRecord(ctx context.Context, recordID string) (*model.PreservationRecord, error) {
	var latest *model.PreservationRecord
	err := s.WithPreservationTx(ctx, func(repo repository.PreservationRepository) error {
		var err error
		latest, err = repo.LatestByRecord(ctx, recordID)
		return err
	})
	return latest, err
}

// --- EventRepository ---

// Events возвращает журнал событий хранилища.
func (s *Store) Events() repository.EventRepository {
	return eventView{store: s}
}

type eventView struct {
	store *Store
}

func (v eventView) Create(_ context.Context, e *model.PreservationEvent) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if _, ok := v.store.events[e.ID]; ok {
		return fmt.Errorf("%w: событие %s", repository.ErrConflict, e.ID)
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	v.store.events[e.ID] = *e
	v.store.order = append(v.store.order, e.ID)
	return nil
}

func (v eventView) SetResponse(_ context.Context, id string, code int, response json.RawMessage) error {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	e, ok := v.store.events[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.ResponseCode = &code
	e.Response = response
	e.UpdatedAt = time.Now().UTC()
	v.store.events[id] = e
	return nil
}

func (v eventView) GetByID(_ context.Context, id string) (*model.PreservationEvent, error) {
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	e, ok := v.store.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

// --- Транзакционное представление ---

// txView — PreservationRepository над рабочей копией записей.
// Вызывается под Store.mu.
type txView struct {
	store   *Store
	records []storedPreservation
	seq     int
}

func (v *txView) Create(_ context.Context, p *model.PreservationRecord) error {
	v.store.calls++
	if !p.Status.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidStatus, p.Status)
	}

	archived := model.TruncateTimestamp(p.ArchiveTimestamp)
	if v.find(p.RecordID, p.RevisionID, archived) >= 0 {
		return fmt.Errorf("%w: запись о сохранении ревизии %d уже существует", repository.ErrConflict, p.RevisionID)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	p.ID = uuid.New().String()
	p.HarvestTimestamp = model.TruncateTimestamp(p.HarvestTimestamp)
	p.ArchiveTimestamp = archived
	p.Description = p.Description.OrEmpty()
	p.CreatedAt, p.UpdatedAt = now, now

	v.seq++
	v.records = append(v.records, storedPreservation{rec: *p, seq: v.seq})
	return nil
}

func (v *txView) FindExisting(_ context.Context, recordID string, revisionID int, archiveTimestamp *time.Time) (*model.PreservationRecord, error) {
	v.store.calls++
	i := v.find(recordID, revisionID, archiveTimestamp)
	if i < 0 {
		return nil, repository.ErrNotFound
	}
	rec := v.records[i].rec
	return &rec, nil
}

func (v *txView) Update(_ context.Context, p *model.PreservationRecord, patch repository.PreservationPatch) error {
	v.store.calls++
	for i := range v.records {
		if v.records[i].rec.ID != p.ID {
			continue
		}
		current := v.records[i].rec
		next := repository.ApplyPatch(&current, patch)
		if repository.SameState(&current, next) {
			return repository.ErrAlreadyReceived
		}
		next.UpdatedAt = time.Now().UTC()
		v.records[i].rec = *next
		*p = *next
		return nil
	}
	return repository.ErrNotFound
}

func (v *txView) ListByRecord(_ context.Context, recordID string) ([]*model.PreservationRecord, error) {
	v.store.calls++
	var matched []storedPreservation
	for _, r := range v.records {
		if r.rec.RecordID == recordID {
			matched = append(matched, r)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.rec.RevisionID != b.rec.RevisionID {
			return a.rec.RevisionID > b.rec.RevisionID
		}
		if !model.SameTimestamp(a.rec.ArchiveTimestamp, b.rec.ArchiveTimestamp) {
			// NULLS LAST
			if a.rec.ArchiveTimestamp == nil {
				return false
			}
			if b.rec.ArchiveTimestamp == nil {
				return true
			}
			return a.rec.ArchiveTimestamp.After(*b.rec.ArchiveTimestamp)
		}
		return a.seq > b.seq
	})

	result := make([]*model.PreservationRecord, 0, len(matched))
	for _, r := range matched {
		rec := r.rec
		result = append(result, &rec)
	}
	return result, nil
}

func (v *txView) LatestByRecord(ctx context.Context, recordID string) (*model.PreservationRecord, error) {
	list, err := v.ListByRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return list[0], nil
}

// find возвращает индекс записи с естественным ключом или -1.
func (v *txView) find(recordID string, revisionID int, archived *time.Time) int {
	for i, r := range v.records {
		if r.rec.RecordID == recordID && r.rec.RevisionID == revisionID &&
			model.SameTimestamp(r.rec.ArchiveTimestamp, archived) {
			return i
		}
	}
	return -1
}
