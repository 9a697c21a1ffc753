package backup

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const snapshotPrefix = "snapshots/"

// s3Client is an interface for testability.
type s3Client interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, opts ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Config holds S3-compatible storage configuration.
type S3Config struct {
	Endpoint  string
	Bucket    string
	Region    string
	AccessKey string
	SecretKey string
}

// Config holds backup manager configuration. Snapshots are skipped
// entirely unless the S3 credentials and a passphrase are set.
type Config struct {
	S3            S3Config
	Passphrase    string
	Hour          int
	RetentionDays int
}

// Manager takes a nightly encrypted snapshot of the database and uploads
// it to S3-compatible storage.
type Manager struct {
	mu         sync.Mutex
	cfg        Config
	db         *sql.DB
	client     s3Client
	logger     *slog.Logger
	lastRun    string
	lastBackup *time.Time

	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager creates a backup manager. The returned manager is disabled
// when the S3 bucket, credentials, or passphrase are missing.
func NewManager(cfg Config, db *sql.DB, logger *slog.Logger) *Manager {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 30
	}
	m := &Manager{
		cfg:    cfg,
		db:     db,
		logger: logger,
		now:    time.Now,
	}
	if cfg.S3.Bucket != "" && cfg.S3.AccessKey != "" && cfg.S3.SecretKey != "" && cfg.Passphrase != "" {
		m.client = newS3Client(cfg.S3)
	}
	return m
}

func newS3Client(cfg S3Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Enabled reports whether snapshots are configured.
func (m *Manager) Enabled() bool {
	return m.client != nil
}

// Start begins the scheduled snapshot loop.
func (m *Manager) Start(ctx context.Context) {
	if m.client == nil {
		m.logger.Info("backups disabled, snapshot loop not started")
		return
	}

	m.mu.Lock()
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})
	m.mu.Unlock()

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.checkSchedule(ctx)
			}
		}
	}()
}

// Stop gracefully stops the snapshot loop.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// LastBackup returns the completion time of the most recent snapshot.
func (m *Manager) LastBackup() *time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBackup
}

// checkSchedule runs a snapshot once per day at the configured hour.
func (m *Manager) checkSchedule(ctx context.Context) {
	now := m.now().UTC()
	if now.Hour() != m.cfg.Hour {
		return
	}

	day := now.Format("2006-01-02")
	m.mu.Lock()
	already := m.lastRun == day
	if !already {
		m.lastRun = day
	}
	m.mu.Unlock()
	if already {
		return
	}

	if err := m.RunNow(ctx); err != nil {
		m.logger.Error("scheduled snapshot failed", "error", err)
	}
	if err := m.prune(ctx); err != nil {
		m.logger.Error("snapshot pruning failed", "error", err)
	}
}

// RunNow takes a snapshot immediately and uploads it.
func (m *Manager) RunNow(ctx context.Context) error {
	if m.client == nil {
		return fmt.Errorf("backups not configured")
	}

	snapshot, err := m.snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot database: %w", err)
	}

	sealed, err := Encrypt(snapshot, m.cfg.Passphrase)
	if err != nil {
		return fmt.Errorf("encrypt snapshot: %w", err)
	}

	now := m.now().UTC()
	key := fmt.Sprintf("%s%s/chorebot-%s.db.enc", snapshotPrefix, now.Format("2006-01-02"), uuid.NewString())

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(m.cfg.S3.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return fmt.Errorf("upload snapshot: %w", err)
	}

	m.mu.Lock()
	m.lastBackup = &now
	m.mu.Unlock()

	m.logger.Info("snapshot uploaded", "key", key, "bytes", len(sealed))
	return nil
}

// snapshot writes a consistent copy of the database to a temp file via
// VACUUM INTO and returns its contents.
func (m *Manager) snapshot(ctx context.Context) ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("chorebot-snapshot-%s.db", uuid.NewString()))
	defer os.Remove(path)

	// VACUUM INTO does not accept bound parameters.
	stmt := fmt.Sprintf("VACUUM INTO '%s'", strings.ReplaceAll(path, "'", "''"))
	if _, err := m.db.ExecContext(ctx, stmt); err != nil {
		return nil, fmt.Errorf("vacuum into: %w", err)
	}
	return os.ReadFile(path)
}

// prune deletes snapshot objects older than the retention window. Ages
// are read from the date segment of the object key.
func (m *Manager) prune(ctx context.Context) error {
	cutoff := m.now().UTC().AddDate(0, 0, -m.cfg.RetentionDays).Format("2006-01-02")

	out, err := m.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(m.cfg.S3.Bucket),
		Prefix: aws.String(snapshotPrefix),
	})
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}

	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		rest := strings.TrimPrefix(key, snapshotPrefix)
		day, _, ok := strings.Cut(rest, "/")
		if !ok || day >= cutoff {
			continue
		}
		if _, err := m.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(m.cfg.S3.Bucket),
			Key:    aws.String(key),
		}); err != nil {
			m.logger.Error("delete expired snapshot", "key", key, "error", err)
		}
	}
	return nil
}
