package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"wpconn/internal/database"
	"wpconn/internal/models"
	"wpconn/pkg/meta"
	"wpconn/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMetaClient implements meta.Client with pluggable behavior.
type fakeMetaClient struct {
	resolveMediaURL func(ctx context.Context, token, mediaID string) (string, error)
	openMediaStream func(ctx context.Context, token, url string) (io.ReadCloser, error)
	uploadMedia     func(ctx context.Context, token, phoneNumberID string, media io.Reader, contentType string) (string, error)
	sendMessage     func(ctx context.Context, token, phoneNumberID string, payload meta.SendPayload) (*meta.SendResponse, error)
}

func (f *fakeMetaClient) ResolveMediaURL(ctx context.Context, token, mediaID string) (string, error) {
	return f.resolveMediaURL(ctx, token, mediaID)
}

func (f *fakeMetaClient) OpenMediaStream(ctx context.Context, token, url string) (io.ReadCloser, error) {
	return f.openMediaStream(ctx, token, url)
}

func (f *fakeMetaClient) UploadMedia(ctx context.Context, token, phoneNumberID string, media io.Reader, contentType string) (string, error) {
	return f.uploadMedia(ctx, token, phoneNumberID, media, contentType)
}

func (f *fakeMetaClient) SendMessage(ctx context.Context, token, phoneNumberID string, payload meta.SendPayload) (*meta.SendResponse, error) {
	return f.sendMessage(ctx, token, phoneNumberID, payload)
}

func newTestObjectStore(t *testing.T) (*storage.LocalStore, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewLocalStore(dir, "test-bucket")
	require.NoError(t, err)
	return store, dir
}

func saveMediaPendingMessage(t *testing.T, store *database.Database, tenantID, wamid, mediaID string) *models.Message {
	t.Helper()

	mime := "image/jpeg"
	msg := &models.Message{
		TenantID:    tenantID,
		Wamid:       wamid,
		Phone:       "15557770000",
		Direction:   models.DirectionInbound,
		Type:        "image",
		Status:      models.MessageStatusMediaPending,
		MediaType:   &mime,
		MetaMediaID: &mediaID,
	}
	require.NoError(t, store.SaveMessage(context.Background(), msg))
	return msg
}

func TestMediaProcessorOffloadsToObjectStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, store, "pn-1", nil)
	objects, dir := newTestObjectStore(t)

	msg := saveMediaPendingMessage(t, store, tenant.ID, "wamid.m1", "media-1")

	content := "jpeg-bytes-here"
	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			assert.Equal(t, tenant.Token, token)
			assert.Equal(t, "media-1", mediaID)
			return "https://lookaside.example.com/m/media-1", nil
		},
		openMediaStream: func(ctx context.Context, token, url string) (io.ReadCloser, error) {
			assert.Equal(t, "https://lookaside.example.com/m/media-1", url)
			return io.NopCloser(strings.NewReader(content)), nil
		},
	}

	audit := &recordingAudit{}
	proc := NewMediaProcessor(store, provider, objects, audit, testWorkerConfig(), testLogger())

	n, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusReceived, got.Status)
	require.NotNil(t, got.MediaURL)
	assert.True(t, strings.HasPrefix(*got.MediaURL, "test-bucket/"+tenant.ID+"/"))
	assert.True(t, strings.HasSuffix(*got.MediaURL, ".jpg"))

	// The stored object holds the streamed bytes.
	key := strings.TrimPrefix(*got.MediaURL, "test-bucket/")
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(key)))
	require.NoError(t, err)
	assert.Equal(t, content, string(data))

	assert.Empty(t, audit.events())
}

// Full pipeline: webhook ingestion produces a media_pending message, the
// media pass turns it into received with a durable locator.
func TestMediaPipelineEndToEnd(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	newTestTenant(t, store, "pn-1", nil)
	objects, _ := newTestObjectStore(t)

	payload := json.RawMessage(fmt.Sprintf(`{
		"entry": [{"changes": [{"value": {
			"metadata": {"phone_number_id": "pn-1"},
			"messages": [{"id": "wamid.img1", "from": "15557770000", "type": "image",
				"image": {"id": "m1", "mime_type": "image/jpeg", "caption": "sunset"}}]
		}}]}]
	}`))
	_, err := store.InsertWebhookEvent(ctx, payload)
	require.NoError(t, err)

	eventProc := NewEventProcessor(store, &recordingForwarder{}, testWorkerConfig(), testLogger())
	_, err = eventProc.ProcessBatch(ctx)
	require.NoError(t, err)

	pending, err := store.GetMessageByWamid(ctx, "wamid.img1")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Equal(t, models.MessageStatusMediaPending, pending.Status)
	assert.Nil(t, pending.MediaURL)
	require.NotNil(t, pending.MetaMediaID)
	assert.Equal(t, "m1", *pending.MetaMediaID)

	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			return "https://lookaside.example.com/m/" + mediaID, nil
		},
		openMediaStream: func(ctx context.Context, token, url string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("jpeg-bytes")), nil
		},
	}
	mediaProc := NewMediaProcessor(store, provider, objects, &recordingAudit{}, testWorkerConfig(), testLogger())
	n, err := mediaProc.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	done, err := store.GetMessageByWamid(ctx, "wamid.img1")
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusReceived, done.Status)
	require.NotNil(t, done.MediaURL)
	assert.True(t, strings.HasPrefix(*done.MediaURL, "test-bucket/"))
	require.NotNil(t, done.Caption)
	assert.Equal(t, "sunset", *done.Caption)
}

func TestMediaProcessorWithoutObjectStoreKeepsProviderURL(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, store, "pn-1", nil)

	msg := saveMediaPendingMessage(t, store, tenant.ID, "wamid.m1", "media-1")

	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			return "https://lookaside.example.com/m/media-1", nil
		},
	}

	proc := NewMediaProcessor(store, provider, nil, &recordingAudit{}, testWorkerConfig(), testLogger())
	_, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)

	got, err := store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusReceived, got.Status)
	require.NotNil(t, got.MediaURL)
	assert.Equal(t, "https://lookaside.example.com/m/media-1", *got.MediaURL)
}

func TestMediaProcessorResolveFailureIsTerminal(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, store, "pn-1", nil)
	objects, _ := newTestObjectStore(t)

	msg := saveMediaPendingMessage(t, store, tenant.ID, "wamid.m1", "media-expired")

	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			return "", fmt.Errorf("media url expired")
		},
	}

	audit := &recordingAudit{}
	proc := NewMediaProcessor(store, provider, objects, audit, testWorkerConfig(), testLogger())
	_, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)

	got, err := store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	assert.Contains(t, *got.ErrorDetail, "media url expired")
	assert.Nil(t, got.MediaURL)

	assert.Equal(t, []string{models.AuditMediaOffloadFailed}, audit.events())

	// Terminal: the message is never claimed again.
	n, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMediaProcessorDownloadFailureIsTerminal(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, store, "pn-1", nil)
	objects, _ := newTestObjectStore(t)

	msg := saveMediaPendingMessage(t, store, tenant.ID, "wamid.m1", "media-1")

	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			return "https://lookaside.example.com/m/media-1", nil
		},
		openMediaStream: func(ctx context.Context, token, url string) (io.ReadCloser, error) {
			return nil, fmt.Errorf("connection reset")
		},
	}

	proc := NewMediaProcessor(store, provider, objects, &recordingAudit{}, testWorkerConfig(), testLogger())
	_, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)

	got, err := store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, got.Status)
	require.NotNil(t, got.ErrorDetail)
	assert.Contains(t, *got.ErrorDetail, "connection reset")
}

func TestMediaProcessorMissingMediaIDFails(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, store, "pn-1", nil)

	msg := &models.Message{
		TenantID:  tenant.ID,
		Wamid:     "wamid.m1",
		Phone:     "15557770000",
		Direction: models.DirectionInbound,
		Type:      "image",
		Status:    models.MessageStatusMediaPending,
	}
	require.NoError(t, store.SaveMessage(ctx, msg))

	resolveCalls := int32(0)
	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			atomic.AddInt32(&resolveCalls, 1)
			return "", nil
		},
	}

	proc := NewMediaProcessor(store, provider, nil, &recordingAudit{}, testWorkerConfig(), testLogger())
	_, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)

	got, err := store.GetMessageByID(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, got.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&resolveCalls))
}

func TestMediaProcessorFailureDoesNotBlockOthers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	tenant := newTestTenant(t, store, "pn-1", nil)

	bad := saveMediaPendingMessage(t, store, tenant.ID, "wamid.bad", "media-bad")
	good := saveMediaPendingMessage(t, store, tenant.ID, "wamid.good", "media-good")

	provider := &fakeMetaClient{
		resolveMediaURL: func(ctx context.Context, token, mediaID string) (string, error) {
			if mediaID == "media-bad" {
				return "", fmt.Errorf("gone")
			}
			return "https://lookaside.example.com/m/" + mediaID, nil
		},
	}

	proc := NewMediaProcessor(store, provider, nil, &recordingAudit{}, testWorkerConfig(), testLogger())
	n, err := proc.ProcessBatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	gotBad, err := store.GetMessageByID(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusFailed, gotBad.Status)

	gotGood, err := store.GetMessageByID(ctx, good.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MessageStatusReceived, gotGood.Status)
}
