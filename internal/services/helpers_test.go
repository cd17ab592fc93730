package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ArtisanClarinets/eccb-backend/internal/db"
	"github.com/ArtisanClarinets/eccb-backend/internal/logger"
	"github.com/ArtisanClarinets/eccb-backend/internal/repos"
	"github.com/ArtisanClarinets/eccb-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// Single connection keeps the in-memory database alive and
	// serializes concurrent writers.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gdb.AutoMigrate(db.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gdb
}

// fakeBucket is an in-memory BucketService that records every delete.
type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: map[string][]byte{}}
}

func (b *fakeBucket) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
	return nil
}

func (b *fakeBucket) Download(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return data, nil
}

func (b *fakeBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return nil
}

func (b *fakeBucket) SignedURL(key string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

func (b *fakeBucket) deletedKeys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.deleted...)
}

func (b *fakeBucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

type fakeExtractor struct {
	meta *types.ExtractedMetadata
	err  error
}

func (f *fakeExtractor) ExtractMetadata(ctx context.Context, pdf []byte, fileName string) (*types.ExtractedMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	clone := *f.meta
	return &clone, nil
}

// fakePDF reports a fixed page count and stamps extracted ranges into
// the output bytes so tests can tell parts apart.
type fakePDF struct {
	pages int
}

func (f *fakePDF) PageCount(pdf []byte) (int, error) {
	return f.pages, nil
}

func (f *fakePDF) ExtractPages(pdf []byte, from, to int) ([]byte, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("invalid page range %d-%d", from, to)
	}
	return []byte(fmt.Sprintf("%%PDF pages %d-%d", from, to)), nil
}

type fakeRenderer struct {
	lastPage int
}

func (f *fakeRenderer) RenderPage(ctx context.Context, pdf []byte, page int, opts RenderOptions) (string, error) {
	f.lastPage = page
	return fmt.Sprintf("png-page-%d", page), nil
}

type testEnv struct {
	db          *gorm.DB
	bucket      *fakeBucket
	sessionRepo repos.UploadSessionRepo
	commit      CommitService
	audit       AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb := newTestDB(t)
	log := logger.NewNop()
	bucket := newFakeBucket()
	sessionRepo := repos.NewUploadSessionRepo(gdb, log)
	commit := NewCommitService(
		gdb, log,
		sessionRepo,
		repos.NewPieceRepo(gdb, log),
		repos.NewPieceFileRepo(gdb, log),
		repos.NewPiecePartRepo(gdb, log),
		repos.NewPersonRepo(gdb, log),
		repos.NewPublisherRepo(gdb, log),
		repos.NewInstrumentRepo(gdb, log),
		bucket,
	)
	audit := NewAuditService(gdb, log, repos.NewAuditEventRepo(gdb, log))
	return &testEnv{
		db:          gdb,
		bucket:      bucket,
		sessionRepo: sessionRepo,
		commit:      commit,
		audit:       audit,
	}
}

func (e *testEnv) createSession(t *testing.T, meta *types.ExtractedMetadata, splitParts []types.SplitPart, tempKeys []string) *types.UploadSession {
	t.Helper()
	id := uuid.New()
	session := &types.UploadSession{
		ID:               id,
		OriginalName:     "march.pdf",
		MimeType:         "application/pdf",
		SizeBytes:        2048,
		StorageKey:       fmt.Sprintf("uploads/%s/original.pdf", id),
		Status:           types.SessionStatusPendingReview,
		ParseStatus:      types.ParseStatusParsed,
		SecondPassStatus: types.SecondPassNone,
	}
	if meta != nil {
		if err := session.SetMetadata(meta); err != nil {
			t.Fatalf("set metadata: %v", err)
		}
	}
	if splitParts != nil {
		if err := session.SetSplitParts(splitParts); err != nil {
			t.Fatalf("set split parts: %v", err)
		}
	}
	keys := append([]string{session.StorageKey}, tempKeys...)
	if err := session.SetTempKeys(keys); err != nil {
		t.Fatalf("set temp keys: %v", err)
	}
	if _, err := e.sessionRepo.Create(context.Background(), nil, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

func (e *testEnv) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
