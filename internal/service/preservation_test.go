package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/preservation-module/internal/domain/model"
	"github.com/bigkaa/goartstore/preservation-module/internal/repository"
	"github.com/bigkaa/goartstore/preservation-module/internal/repository/repotest"
)

// --- Моки коллабораторов ---

// mockResolver — мок Resolver для unit-тестов.
type mockResolver struct {
	resolveFn func(ctx context.Context, pid string) (*model.Record, error)
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, pid string) (*model.Record, error) {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, pid)
	}
	return nil, model.ErrRecordNotFound
}

// mockPolicy — мок PermissionPolicy. nil-функция означает «разрешено».
type mockPolicy struct {
	canReadFn   func(identity *model.Identity, record *model.Record) bool
	canWriteFn  func(identity *model.Identity, record *model.Record) bool
	canManageFn func(identity *model.Identity, record *model.Record) bool
}

func (m *mockPolicy) CanRead(_ context.Context, identity *model.Identity, record *model.Record) bool {
	return m.canReadFn == nil || m.canReadFn(identity, record)
}

func (m *mockPolicy) CanWrite(_ context.Context, identity *model.Identity, record *model.Record) bool {
	return m.canWriteFn == nil || m.canWriteFn(identity, record)
}

func (m *mockPolicy) CanManage(_ context.Context, identity *model.Identity, record *model.Record) bool {
	return m.canManageFn != nil && m.canManageFn(identity, record)
}

// mockPreservationRepo — мок PreservationRepository с функциями-полями.
type mockPreservationRepo struct {
	createFn       func(ctx context.Context, p *model.PreservationRecord) error
	findExistingFn func(ctx context.Context, recordID string, revisionID int, archived *time.Time) (*model.PreservationRecord, error)
	updateFn       func(ctx context.Context, p *model.PreservationRecord, patch repository.PreservationPatch) error
}

func (m *mockPreservationRepo) Create(ctx context.Context, p *model.PreservationRecord) error {
	return m.createFn(ctx, p)
}

func (m *mockPreservationRepo) FindExisting(ctx context.Context, recordID string, revisionID int, archived *time.Time) (*model.PreservationRecord, error) {
	return m.findExistingFn(ctx, recordID, revisionID, archived)
}

func (m *mockPreservationRepo) Update(ctx context.Context, p *model.PreservationRecord, patch repository.PreservationPatch) error {
	return m.updateFn(ctx, p, patch)
}

func (m *mockPreservationRepo) ListByRecord(context.Context, string) ([]*model.PreservationRecord, error) {
	return nil, nil
}

func (m *mockPreservationRepo) LatestByRecord(context.Context, string) (*model.PreservationRecord, error) {
	return nil, repository.ErrNotFound
}

// mockTx — Transactor, передающий репозиторий без транзакции.
type mockTx struct {
	repo repository.PreservationRepository
}

func (m *mockTx) WithPreservationTx(_ context.Context, fn func(repo repository.PreservationRepository) error) error {
	return fn(m.repo)
}

// --- Фикстуры ---

var (
	publicRecord = &model.Record{
		ID:     "6f1c3a52-58f5-4c3e-9d1b-1f0f6a1b2c3d",
		PID:    "public_pid",
		Access: model.AccessPublic,
		Owners: []string{"owner-1"},
	}
	restrictedRecord = &model.Record{
		ID:     "9a7b2c1d-0e4f-4a3b-8c2d-1e0f9a8b7c6d",
		PID:    "restricted_pid",
		Access: model.AccessRestricted,
	}
	platform = &model.Identity{
		Subject:     "sa-preservation-platform",
		SubjectType: model.SubjectTypeSA,
		Scopes:      []string{model.ScopePreservationWrite},
	}
)

func fixtureResolver() *mockResolver {
	return &mockResolver{
		resolveFn: func(_ context.Context, pid string) (*model.Record, error) {
			switch pid {
			case publicRecord.PID:
				return publicRecord, nil
			case restrictedRecord.PID:
				return restrictedRecord, nil
			}
			return nil, model.ErrRecordNotFound
		},
	}
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func ingestRequest(revision int, status string) IngestRequest {
	return IngestRequest{
		PID:              publicRecord.PID,
		RevisionID:       intPtr(revision),
		Status:           status,
		ArchiveTimestamp: timePtr(time.Date(2024, 7, 31, 13, 34, 18, 0, time.UTC)),
		URI:              strPtr("https://preservation.example.org/aip/1"),
		Path:             strPtr("/data/aip/1"),
		Description:      model.Description{"sender": "Preservation Platform", "compliance": "OAIS"},
	}
}

func newTestService(store *repotest.Store, resolver Resolver, policy PermissionPolicy) *PreservationService {
	return NewPreservationService(store, store, resolver, policy, true, UIConfig{Title: "Preservation Platform", ManagerLinkOverride: true}, slog.Default())
}

// --- Тесты Ingest ---

// TestIngest_Create проверяет создание новой записи о сохранении.
func TestIngest_Create(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, fixtureResolver(), &mockPolicy{})

	p, outcome, err := svc.Ingest(context.Background(), platform, ingestRequest(1, "preserved"))
	if err != nil {
		t.Fatalf("Ingest ошибка: %v", err)
	}
	if outcome != OutcomeCreated {
		t.Errorf("outcome = %q, ожидался created", outcome)
	}
	if p.ID == "" {
		t.Error("ID не сгенерирован")
	}
	if p.RecordID != publicRecord.ID {
		t.Errorf("RecordID = %q, ожидался %q", p.RecordID, publicRecord.ID)
	}
	if p.Status != model.StatusPreserved {
		t.Errorf("Status = %q, ожидался P", p.Status)
	}
	if store.Len() != 1 {
		t.Errorf("записей в хранилище: %d, ожидалась 1", store.Len())
	}
}

// TestIngest_Idempotent проверяет, что повтор уведомления не создаёт вторую запись.
func TestIngest_Idempotent(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, fixtureResolver(), &mockPolicy{})
	ctx := context.Background()

	if _, _, err := svc.Ingest(ctx, platform, ingestRequest(1, "P")); err != nil {
		t.Fatalf("первый Ingest ошибка: %v", err)
	}

	_, _, err := svc.Ingest(ctx, platform, ingestRequest(1, "P"))
	if !errors.Is(err, ErrDuplicateNotification) {
		t.Fatalf("повторный Ingest: ожидалась ErrDuplicateNotification, получено %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("записей в хранилище: %d, ожидалась 1", store.Len())
	}
}

// TestIngest_UpdateSingleField проверяет, что изменение одного поля — обновление, а не повтор.
func TestIngest_UpdateSingleField(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, fixtureResolver(), &mockPolicy{})
	ctx := context.Background()

	created, _, err := svc.Ingest(ctx, platform, ingestRequest(1, "P"))
	if err != nil {
		t.Fatalf("первый Ingest ошибка: %v", err)
	}

	req := ingestRequest(1, "P")
	req.URI = strPtr("https://preservation.example.org/aip/1-moved")
	req.Path = nil
	req.Description = nil
	req.EventID = strPtr("c3f7b1d0-1111-4d51-8a33-0a3a9b7c1e10")

	updated, outcome, err := svc.Ingest(ctx, platform, req)
	if err != nil {
		t.Fatalf("Ingest с новым URI ошибка: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("outcome = %q, ожидался updated", outcome)
	}
	if updated.ID != created.ID {
		t.Errorf("ID изменился: %q → %q", created.ID, updated.ID)
	}
	if *updated.URI != "https://preservation.example.org/aip/1-moved" {
		t.Errorf("URI = %q", *updated.URI)
	}
	if updated.Path == nil || *updated.Path != "/data/aip/1" {
		t.Errorf("Path = %v, непереданное поле должно сохраниться", updated.Path)
	}
	if !updated.Description.Equal(created.Description) {
		t.Errorf("Description = %v, непереданное поле должно сохраниться", updated.Description)
	}
	if updated.EventID == nil || *updated.EventID != *req.EventID {
		t.Errorf("EventID = %v, ожидался %q", updated.EventID, *req.EventID)
	}
	if store.Len() != 1 {
		t.Errorf("записей в хранилище: %d, ожидалась 1", store.Len())
	}
}

// TestIngest_StatusTransitionNotValidated проверяет, что переходы статусов не ограничены.
func TestIngest_StatusTransitionNotValidated(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, fixtureResolver(), &mockPolicy{})
	ctx := context.Background()

	if _, _, err := svc.Ingest(ctx, platform, ingestRequest(1, "deleted")); err != nil {
		t.Fatalf("Ingest(D) ошибка: %v", err)
	}
	p, outcome, err := svc.Ingest(ctx, platform, ingestRequest(1, "preserved"))
	if err != nil {
		t.Fatalf("Ingest(D → P) ошибка: %v", err)
	}
	if outcome != OutcomeUpdated || p.Status != model.StatusPreserved {
		t.Errorf("outcome = %q, status = %q; ожидалось updated, P", outcome, p.Status)
	}
}

// TestIngest_AbsentArchiveTimestamp проверяет, что отсутствующее время архивации
// совпадает только с отсутствующим.
func TestIngest_AbsentArchiveTimestamp(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, fixtureResolver(), &mockPolicy{})
	ctx := context.Background()

	noArchive := ingestRequest(1, "I")
	noArchive.ArchiveTimestamp = nil

	if _, outcome, err := svc.Ingest(ctx, platform, noArchive); err != nil || outcome != OutcomeCreated {
		t.Fatalf("Ingest без archive_timestamp: outcome=%q err=%v", outcome, err)
	}
	if _, outcome, err := svc.Ingest(ctx, platform, ingestRequest(1, "P")); err != nil || outcome != OutcomeCreated {
		t.Fatalf("Ingest с archive_timestamp: outcome=%q err=%v, ожидалась новая запись", outcome, err)
	}
	if _, _, err := svc.Ingest(ctx, platform, noArchive); !errors.Is(err, ErrDuplicateNotification) {
		t.Errorf("повтор без archive_timestamp: ожидалась ErrDuplicateNotification, получено %v", err)
	}
	if store.Len() != 2 {
		t.Errorf("записей в хранилище: %d, ожидалось 2", store.Len())
	}
}

// TestIngest_StatusNormalization проверяет разбор статуса из кода и имени.
func TestIngest_StatusNormalization(t *testing.T) {
	for i, status := range []string{"P", "p", "preserved", "PRESERVED"} {
		t.Run(status, func(t *testing.T) {
			store := repotest.NewStore()
			svc := newTestService(store, fixtureResolver(), &mockPolicy{})

			p, _, err := svc.Ingest(context.Background(), platform, ingestRequest(i, status))
			if err != nil {
				t.Fatalf("Ingest(%q) ошибка: %v", status, err)
			}
			if p.Status != model.StatusPreserved {
				t.Errorf("Status = %q, ожидался P", p.Status)
			}
		})
	}
}

// TestIngest_MalformedBeforeCollaborators проверяет валидацию до обращения
// к resolver и хранилищу.
func TestIngest_MalformedBeforeCollaborators(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *IngestRequest)
		want   error
	}{
		{"нет pid", func(r *IngestRequest) { r.PID = "" }, ErrMalformedRequest},
		{"нет revision_id", func(r *IngestRequest) { r.RevisionID = nil }, ErrMalformedRequest},
		{"нет status", func(r *IngestRequest) { r.Status = "" }, ErrMalformedRequest},
		{"отрицательная ревизия", func(r *IngestRequest) { r.RevisionID = intPtr(-1) }, ErrMalformedRequest},
		{"длинный uri", func(r *IngestRequest) {
			long := make([]byte, 256)
			for i := range long {
				long[i] = 'a'
			}
			r.URI = strPtr(string(long))
		}, ErrMalformedRequest},
		{"неизвестный статус", func(r *IngestRequest) { r.Status = "archived" }, ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repotest.NewStore()
			resolver := fixtureResolver()
			svc := newTestService(store, resolver, &mockPolicy{})

			req := ingestRequest(1, "P")
			tt.mutate(&req)

			_, _, err := svc.Ingest(context.Background(), platform, req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("ошибка = %v, ожидалась %v", err, tt.want)
			}
			if resolver.calls != 0 {
				t.Errorf("resolver вызван %d раз, ожидалось 0", resolver.calls)
			}
			if store.Calls() != 0 {
				t.Errorf("хранилище вызвано %d раз, ожидалось 0", store.Calls())
			}
		})
	}
}

// TestIngest_PermissionDenied проверяет отказ без права записи.
func TestIngest_PermissionDenied(t *testing.T) {
	store := repotest.NewStore()
	policy := &mockPolicy{
		canWriteFn: func(*model.Identity, *model.Record) bool { return false },
	}
	svc := newTestService(store, fixtureResolver(), policy)

	_, _, err := svc.Ingest(context.Background(), model.AnonymousIdentity(), ingestRequest(1, "P"))
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("ошибка = %v, ожидалась ErrPermissionDenied", err)
	}
	if store.Calls() != 0 {
		t.Errorf("хранилище вызвано %d раз, ожидалось 0", store.Calls())
	}
}

// TestIngest_ReferenceNotFound проверяет неизвестный PID.
func TestIngest_ReferenceNotFound(t *testing.T) {
	svc := newTestService(repotest.NewStore(), fixtureResolver(), &mockPolicy{})

	req := ingestRequest(1, "P")
	req.PID = "unknown_pid"
	_, _, err := svc.Ingest(context.Background(), platform, req)
	if !errors.Is(err, ErrReferenceNotFound) {
		t.Fatalf("ошибка = %v, ожидалась ErrReferenceNotFound", err)
	}
}

// TestIngest_ResolverFailure проверяет, что сбой resolver не маскируется под неизвестный PID.
func TestIngest_ResolverFailure(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(context.Context, string) (*model.Record, error) {
			return nil, errors.New("connection refused")
		},
	}
	svc := newTestService(repotest.NewStore(), resolver, &mockPolicy{})

	_, _, err := svc.Ingest(context.Background(), platform, ingestRequest(1, "P"))
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}
	if errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("сбой resolver не должен быть ErrReferenceNotFound: %v", err)
	}
}

// TestIngest_ModuleDisabled проверяет отключённый приём уведомлений.
func TestIngest_ModuleDisabled(t *testing.T) {
	store := repotest.NewStore()
	resolver := fixtureResolver()
	svc := NewPreservationService(store, store, resolver, &mockPolicy{}, false, UIConfig{}, slog.Default())

	_, _, err := svc.Ingest(context.Background(), platform, ingestRequest(1, "P"))
	if !errors.Is(err, ErrModuleDisabled) {
		t.Fatalf("ошибка = %v, ожидалась ErrModuleDisabled", err)
	}
	if resolver.calls != 0 || store.Calls() != 0 {
		t.Error("при отключённом модуле коллабораторы не должны вызываться")
	}
}

// TestIngest_ConflictOnCreate проверяет переход к обновлению, если запись
// создана параллельно между поиском и вставкой.
func TestIngest_ConflictOnCreate(t *testing.T) {
	existing := &model.PreservationRecord{
		ID:         "0b0e3c43-65b4-4a8f-a2c3-2a8f2d6f8f11",
		RecordID:   publicRecord.ID,
		RevisionID: 1,
		Status:     model.StatusProcessing,
	}

	findCalls := 0
	updated := false
	repo := &mockPreservationRepo{
		findExistingFn: func(context.Context, string, int, *time.Time) (*model.PreservationRecord, error) {
			findCalls++
			if findCalls == 1 {
				return nil, repository.ErrNotFound
			}
			cp := *existing
			return &cp, nil
		},
		createFn: func(context.Context, *model.PreservationRecord) error {
			return repository.ErrConflict
		},
		updateFn: func(_ context.Context, p *model.PreservationRecord, patch repository.PreservationPatch) error {
			updated = true
			if p.ID != existing.ID {
				t.Errorf("Update вызван для %q, ожидался %q", p.ID, existing.ID)
			}
			*p = *repository.ApplyPatch(p, patch)
			return nil
		},
	}

	svc := NewPreservationService(repo, &mockTx{repo: repo}, fixtureResolver(), &mockPolicy{}, true, UIConfig{}, slog.Default())

	p, outcome, err := svc.Ingest(context.Background(), platform, ingestRequest(1, "P"))
	if err != nil {
		t.Fatalf("Ingest ошибка: %v", err)
	}
	if findCalls != 2 {
		t.Errorf("FindExisting вызван %d раз, ожидалось 2", findCalls)
	}
	if !updated || outcome != OutcomeUpdated {
		t.Errorf("outcome = %q, ожидался updated", outcome)
	}
	if p.Status != model.StatusPreserved {
		t.Errorf("Status = %q, ожидался P", p.Status)
	}
}

// TestIngest_StorageFailure проверяет проброс ошибки хранилища.
func TestIngest_StorageFailure(t *testing.T) {
	dbErr := errors.New("connection reset")
	repo := &mockPreservationRepo{
		findExistingFn: func(context.Context, string, int, *time.Time) (*model.PreservationRecord, error) {
			return nil, dbErr
		},
	}
	svc := NewPreservationService(repo, &mockTx{repo: repo}, fixtureResolver(), &mockPolicy{}, true, UIConfig{}, slog.Default())

	_, _, err := svc.Ingest(context.Background(), platform, ingestRequest(1, "P"))
	if !errors.Is(err, dbErr) {
		t.Errorf("ошибка = %v, ожидалась обёрнутая ошибка хранилища", err)
	}
}

// --- Тесты чтения ---

// TestLatest_Ordering проверяет, что последней считается старшая ревизия
// независимо от порядка поступления.
func TestLatest_Ordering(t *testing.T) {
	store := repotest.NewStore()
	svc := newTestService(store, fixtureResolver(), &mockPolicy{})
	ctx := context.Background()

	t1 := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	rev2 := ingestRequest(2, "F")
	rev2.ArchiveTimestamp = &t2
	rev1 := ingestRequest(1, "P")
	rev1.ArchiveTimestamp = &t1

	for _, req := range []IngestRequest{rev2, rev1} {
		if _, _, err := svc.Ingest(ctx, platform, req); err != nil {
			t.Fatalf("Ingest ошибка: %v", err)
		}
	}

	latest, err := svc.Latest(ctx, model.AnonymousIdentity(), publicRecord.PID)
	if err != nil {
		t.Fatalf("Latest ошибка: %v", err)
	}
	if latest.RevisionID != 2 || latest.Status != model.StatusFailed {
		t.Errorf("Latest = rev %d %q, ожидалась rev 2 F", latest.RevisionID, latest.Status)
	}

	list, err := svc.List(ctx, model.AnonymousIdentity(), publicRecord.PID)
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if len(list) != 2 || list[0].RevisionID != 2 || list[1].RevisionID != 1 {
		t.Errorf("List вернул неверный порядок: %d записей", len(list))
	}
}

// TestRead_Empty проверяет, что отсутствие записей — успешный результат.
func TestRead_Empty(t *testing.T) {
	svc := newTestService(repotest.NewStore(), fixtureResolver(), &mockPolicy{})
	ctx := context.Background()

	latest, err := svc.Latest(ctx, model.AnonymousIdentity(), publicRecord.PID)
	if err != nil {
		t.Fatalf("Latest ошибка: %v", err)
	}
	if latest != nil {
		t.Errorf("Latest = %+v, ожидался nil", latest)
	}

	list, err := svc.List(ctx, model.AnonymousIdentity(), publicRecord.PID)
	if err != nil {
		t.Fatalf("List ошибка: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List вернул %d записей, ожидалось 0", len(list))
	}
}

// TestRead_PermissionDenied проверяет, что без права чтения данные не возвращаются.
func TestRead_PermissionDenied(t *testing.T) {
	store := repotest.NewStore()
	policy := &mockPolicy{
		canReadFn: func(_ *model.Identity, r *model.Record) bool { return r.IsPublic() },
	}
	svc := newTestService(store, fixtureResolver(), policy)
	ctx := context.Background()

	req := ingestRequest(1, "P")
	req.PID = restrictedRecord.PID
	if _, _, err := svc.Ingest(ctx, platform, req); err != nil {
		t.Fatalf("Ingest ошибка: %v", err)
	}

	list, err := svc.List(ctx, model.AnonymousIdentity(), restrictedRecord.PID)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("List: ошибка = %v, ожидалась ErrPermissionDenied", err)
	}
	if list != nil {
		t.Errorf("List вернул %d записей при отказе в доступе", len(list))
	}

	latest, err := svc.Latest(ctx, model.AnonymousIdentity(), restrictedRecord.PID)
	if !errors.Is(err, ErrPermissionDenied) || latest != nil {
		t.Errorf("Latest: (%v, %v), ожидался (nil, ErrPermissionDenied)", latest, err)
	}
}

// TestRead_ReferenceNotFound проверяет чтение по неизвестному PID.
func TestRead_ReferenceNotFound(t *testing.T) {
	svc := newTestService(repotest.NewStore(), fixtureResolver(), &mockPolicy{})

	if _, err := svc.List(context.Background(), platform, "unknown_pid"); !errors.Is(err, ErrReferenceNotFound) {
		t.Errorf("List: ошибка = %v, ожидалась ErrReferenceNotFound", err)
	}
	if _, err := svc.Latest(context.Background(), platform, ""); !errors.Is(err, ErrMalformedRequest) {
		t.Errorf("Latest(пустой pid): ошибка = %v, ожидалась ErrMalformedRequest", err)
	}
}

// --- Тесты ExternalResource ---

func TestExternalResource(t *testing.T) {
	tests := []struct {
		name      string
		status    string
		canManage bool
		ui        UIConfig
		wantLen   int
		wantURL   string
	}{
		{"сохранено — видно всем", "P", false, UIConfig{Title: "Archive"}, 1, "https://preservation.example.org/aip/1"},
		{"ошибка — скрыто от читателя", "F", false, UIConfig{Title: "Archive"}, 0, ""},
		{"ошибка — видно управляющему", "F", true, UIConfig{Title: "Archive"}, 1, "https://preservation.example.org/aip/1"},
		{"ссылка из конфигурации", "P", false,
			UIConfig{Title: "Archive", Link: "https://archive.example.org", ManagerLinkOverride: true}, 1, "https://archive.example.org"},
		{"управляющий видит URI без override", "P", true,
			UIConfig{Title: "Archive", Link: "https://archive.example.org", ManagerLinkOverride: false}, 1, "https://preservation.example.org/aip/1"},
		{"управляющий видит ссылку с override", "P", true,
			UIConfig{Title: "Archive", Link: "https://archive.example.org", ManagerLinkOverride: true}, 1, "https://archive.example.org"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := repotest.NewStore()
			policy := &mockPolicy{
				canManageFn: func(*model.Identity, *model.Record) bool { return tt.canManage },
			}
			svc := NewPreservationService(store, store, fixtureResolver(), policy, true, tt.ui, slog.Default())
			ctx := context.Background()

			if _, _, err := svc.Ingest(ctx, platform, ingestRequest(1, tt.status)); err != nil {
				t.Fatalf("Ingest ошибка: %v", err)
			}

			resources, err := svc.ExternalResource(ctx, model.AnonymousIdentity(), publicRecord.PID)
			if err != nil {
				t.Fatalf("ExternalResource ошибка: %v", err)
			}
			if len(resources) != tt.wantLen {
				t.Fatalf("ресурсов: %d, ожидалось %d", len(resources), tt.wantLen)
			}
			if tt.wantLen == 0 {
				return
			}

			content := resources[0].Content
			if content.URL == nil || *content.URL != tt.wantURL {
				t.Errorf("URL = %v, ожидался %q", content.URL, tt.wantURL)
			}
			if content.Title != "Archive" {
				t.Errorf("Title = %q, ожидался Archive", content.Title)
			}
			if content.Section != "Preserved in" {
				t.Errorf("Section = %q", content.Section)
			}
			if content.Icon != nil {
				t.Errorf("Icon = %q, ожидался nil", *content.Icon)
			}
		})
	}
}

func TestExternalResource_NoPreservation(t *testing.T) {
	svc := newTestService(repotest.NewStore(), fixtureResolver(), &mockPolicy{})

	resources, err := svc.ExternalResource(context.Background(), platform, publicRecord.PID)
	if err != nil {
		t.Fatalf("ExternalResource ошибка: %v", err)
	}
	if len(resources) != 0 {
		t.Errorf("ресурсов: %d, ожидалось 0", len(resources))
	}
}
