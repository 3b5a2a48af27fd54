package proof

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"jornada/pkg/config"
	"jornada/services/actionlog"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxProofBytes = 10 << 20

var ErrNotImage = errors.New("proof is not an image")

// ObjectStore is the slice of the minio client used to archive proofs.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type Service struct {
	store      ObjectStore
	bucket     string
	httpClient *http.Client
	actionLogs *actionlog.Service
}

type ServiceParams struct {
	fx.In

	Config     *config.Config
	Minio      *minio.Client `optional:"true"`
	ActionLogs *actionlog.Service
}

func NewService(p ServiceParams) *Service {
	var store ObjectStore
	if p.Minio != nil {
		store = p.Minio
	}

	return &Service{
		store:      store,
		bucket:     p.Config.Minio.BucketName,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		actionLogs: p.ActionLogs,
	}
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
}

// ObjectKey is proofs/<project>/<participant>/day-<nn><ext>.
func ObjectKey(log *actionlog.ActionLog, contentType string) string {
	ext, ok := extensions[contentType]
	if !ok {
		ext = ".jpg"
		if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
			ext = exts[0]
		}
	}
	return path.Join("proofs", log.ProjectID, log.ParticipantID, fmt.Sprintf("day-%02d%s", log.DayNumber, ext))
}

// HandleArchiveTask copies the proof photo of an action log into the bucket.
func (s *Service) HandleArchiveTask(ctx context.Context, t *asynq.Task) error {
	var payload ArchivePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode archive payload: %v: %w", err, asynq.SkipRetry)
	}

	if s.store == nil {
		zap.L().Warn("proof archive requested but object storage is not configured",
			zap.String("action_log_id", payload.ActionLogID))
		return nil
	}

	return s.Archive(ctx, payload)
}

func (s *Service) Archive(ctx context.Context, payload ArchivePayload) error {
	zapLog := zap.L().With(
		zap.String("action_log_id", payload.ActionLogID),
		zap.String("photo_url", payload.PhotoURL),
	)

	log, err := s.actionLogs.Get(ctx, payload.ActionLogID)
	if err != nil {
		return err
	}
	if log == nil || log.PhotoURL == nil || *log.PhotoURL != payload.PhotoURL {
		zapLog.Info("photo changed or record gone, skipping archive")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.PhotoURL, nil)
	if err != nil {
		return fmt.Errorf("build proof request: %v: %w", err, asynq.SkipRetry)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		zapLog.Warn("failed to download proof", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("download proof: status %d: %w", resp.StatusCode, asynq.SkipRetry)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download proof: status %d", resp.StatusCode)
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if contentType != "" && !strings.HasPrefix(contentType, "image/") {
		zapLog.Warn("proof is not an image", zap.String("content_type", contentType))
		return fmt.Errorf("%w: %s: %w", ErrNotImage, contentType, asynq.SkipRetry)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProofBytes+1))
	if err != nil {
		return err
	}
	if len(body) > maxProofBytes {
		return fmt.Errorf("proof larger than %d bytes: %w", maxProofBytes, asynq.SkipRetry)
	}

	key := ObjectKey(log, contentType)
	if _, err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"action-log-id": log.ID,
			"source-url":    payload.PhotoURL,
		},
	}); err != nil {
		zapLog.Error("failed to upload proof", zap.String("object_key", key), zap.Error(err))
		return err
	}

	if err := s.actionLogs.MarkArchived(ctx, log.ID, payload.PhotoURL, key); err != nil {
		return err
	}

	zapLog.Info("proof archived", zap.String("bucket", s.bucket), zap.String("object_key", key))
	return nil
}
