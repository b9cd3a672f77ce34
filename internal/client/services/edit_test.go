package services

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/marinelog/internal/client/models"
	"github.com/dmitrijs2005/marinelog/internal/client/photo"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestEditSession_IdenticalPhotoAttachedOnce(t *testing.T) {
	h := newHarness(t, nil)
	e := h.svc.NewRecord()
	e.SetStartDateTime(t0)

	data := pngBytes(t, 1600, 900, color.RGBA{R: 200, A: 255})

	added, err := e.AttachPhoto(data)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = e.AttachPhoto(data)
	require.NoError(t, err)
	assert.False(t, added)

	added, err = e.AttachPhoto(pngBytes(t, 10, 10, color.RGBA{B: 200, A: 255}))
	require.NoError(t, err)
	assert.True(t, added)

	r, err := e.Submit(context.Background())
	require.NoError(t, err)
	require.Len(t, r.Photos, 2)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(r.Photos[0].Data))
	require.NoError(t, err)
	assert.Equal(t, photo.DefaultMaxDimension, cfg.Width)
}

func TestEditSession_ReattachAfterUploadIsNoop(t *testing.T) {
	h := newHarness(t, nil)
	h.online(t)
	ctx := context.Background()
	data := pngBytes(t, 40, 30, color.RGBA{G: 180, A: 255})

	e := h.svc.NewRecord()
	e.SetStartDateTime(t0)
	added, err := e.AttachPhoto(data)
	require.NoError(t, err)
	require.True(t, added)
	r, err := e.Submit(ctx)
	require.NoError(t, err)

	_, err = h.svc.Reconcile(ctx)
	require.NoError(t, err)
	synced := h.local(t)
	require.Len(t, synced, 1)
	require.True(t, synced[0].Synced)
	require.Len(t, synced[0].Photos, 1)
	require.True(t, synced[0].Photos[0].Remote())

	h.conn.online.Store(false)
	e, err = h.svc.Edit(ctx, r.ID)
	require.NoError(t, err)
	added, err = e.AttachPhoto(data)
	require.NoError(t, err)
	assert.False(t, added)
	e.SetDetails("second visit")
	_, err = e.Submit(ctx)
	require.NoError(t, err)

	got := h.local(t)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Photos, 1)
	assert.Equal(t, 1, h.remote.uploads)
}

func TestEditSession_AttachRejectsNonImage(t *testing.T) {
	h := newHarness(t, nil)
	e := h.svc.NewRecord()

	_, err := e.AttachPhoto([]byte("not an image"))
	require.ErrorIs(t, err, photo.ErrDecode)
	assert.Empty(t, e.Record().Photos)
}

func TestEditSession_RemovePhoto(t *testing.T) {
	h := newHarness(t, nil)
	r := rec("r1", t0, true)
	r.Photos = []models.PhotoRef{{URL: "https://cdn/a"}, {URL: "https://cdn/b"}, {URL: "https://cdn/c"}}
	h.seedLocal(t, r)

	e, err := h.svc.Edit(context.Background(), "r1")
	require.NoError(t, err)

	require.NoError(t, e.RemovePhoto(1))
	require.ErrorIs(t, e.RemovePhoto(5), ErrPhotoIndex)
	require.ErrorIs(t, e.RemovePhoto(-1), ErrPhotoIndex)

	got := e.Record().Photos
	require.Len(t, got, 2)
	assert.Equal(t, "https://cdn/a", got[0].URL)
	assert.Equal(t, "https://cdn/c", got[1].URL)

	// the stored copy is untouched until submit
	stored, err := h.svc.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Len(t, stored.Photos, 3)
}

func TestEditSession_SubmitBumpsUpdatedAtAndClearsSynced(t *testing.T) {
	h := newHarness(t, nil)
	h.seedLocal(t, rec("r1", t0.Add(2*time.Hour), true))
	ctx := context.Background()

	e, err := h.svc.Edit(ctx, "r1")
	require.NoError(t, err)
	assert.False(t, e.IsNew())
	e.SetVesselName("Aurora")

	r, err := e.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, r.Synced)
	assert.True(t, r.UpdatedAt.After(t0.Add(2*time.Hour)), "updatedAt strictly increases even when the clock lags")
	assert.True(t, r.CreatedAt.Equal(t0))
	assert.Equal(t, "Aurora", r.VesselName)

	_, err = e.Submit(ctx)
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestEditSession_CancelLeavesStoreUntouched(t *testing.T) {
	h := newHarness(t, nil)
	h.seedLocal(t, rec("r1", t0, true))
	ctx := context.Background()

	e, err := h.svc.Edit(ctx, "r1")
	require.NoError(t, err)
	e.SetDetails("discard me")
	e.Cancel()

	e.SetDetails("ignored after close")
	_, err = e.AttachPhoto(pngBytes(t, 4, 4, color.White))
	require.ErrorIs(t, err, ErrSessionClosed)
	_, err = e.Submit(ctx)
	require.ErrorIs(t, err, ErrSessionClosed)

	got := h.local(t)
	require.Len(t, got, 1)
	assert.Equal(t, "oil change", got[0].Details)
	assert.True(t, got[0].Synced)
}

func TestEditSession_ValidationKeepsSessionOpen(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	e := h.svc.NewRecord()
	assert.True(t, e.IsNew())
	e.SetClientName("Acme")

	_, err := e.Submit(ctx)
	require.ErrorIs(t, err, models.ErrMissingStart)
	assert.Empty(t, h.local(t))

	e.SetStartDateTime(t0)
	r, err := e.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Acme", r.ClientName)
	assert.Len(t, h.local(t), 1)
}

func TestEdit_UnknownRecord(t *testing.T) {
	h := newHarness(t, nil)
	_, err := h.svc.Edit(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRecordNotFound)
}
