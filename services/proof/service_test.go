package proof

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"jornada/services/actionlog"
	"jornada/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeStore struct {
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeStore) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	b, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucket+"/"+object] = b
	f.types[bucket+"/"+object] = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: object, Size: size}, nil
}

func setup(t *testing.T, photoURL string) (*Service, *fakeStore, *actionlog.Service, string) {
	t.Helper()
	db := testutil.NewTestDB(t, &actionlog.ActionLog{})
	logs := actionlog.NewService(actionlog.ServiceParams{DB: db, Node: testutil.NewNode(t)})

	require.NoError(t, db.Create(&actionlog.ActionLog{
		ID: "l1", ParticipantID: "u1", ProjectID: "p1", DayNumber: 4,
		Status: actionlog.StatusCompleted, PointsAwarded: 7, PhotoURL: &photoURL,
	}).Error)

	store := &fakeStore{objects: map[string][]byte{}, types: map[string]string{}}
	svc := &Service{store: store, bucket: "proofs", httpClient: http.DefaultClient, actionLogs: logs}
	return svc, store, logs, "l1"
}

func TestArchiveCopiesImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	url := srv.URL + "/a.png"
	svc, store, logs, id := setup(t, url)

	task, err := NewArchiveTask(id, url)
	require.NoError(t, err)
	require.NoError(t, svc.HandleArchiveTask(context.Background(), task))

	key := "proofs/proofs/p1/u1/day-04.png"
	require.Equal(t, []byte("png-bytes"), store.objects[key])
	require.Equal(t, "image/png", store.types[key])

	stored, err := logs.Get(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, "proofs/p1/u1/day-04.png", *stored.PhotoObjectKey)
}

func TestArchiveSkipsChangedPhoto(t *testing.T) {
	svc, store, _, id := setup(t, "https://cdn/new.jpg")

	require.NoError(t, svc.Archive(context.Background(), ArchivePayload{ActionLogID: id, PhotoURL: "https://cdn/old.jpg"}))
	require.Empty(t, store.objects)
}

func TestArchiveRejectsNonImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	url := srv.URL + "/page"
	svc, store, _, id := setup(t, url)

	err := svc.Archive(context.Background(), ArchivePayload{ActionLogID: id, PhotoURL: url})
	require.ErrorIs(t, err, ErrNotImage)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, store.objects)
}

func TestArchiveClientErrorSkipsRetry(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	url := srv.URL + "/gone.jpg"
	svc, _, _, id := setup(t, url)

	err := svc.Archive(context.Background(), ArchivePayload{ActionLogID: id, PhotoURL: url})
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleArchiveTaskWithoutStore(t *testing.T) {
	svc, _, _, id := setup(t, "https://cdn/a.jpg")
	svc.store = nil

	task, err := NewArchiveTask(id, "https://cdn/a.jpg")
	require.NoError(t, err)
	require.NoError(t, svc.HandleArchiveTask(context.Background(), task))
}
