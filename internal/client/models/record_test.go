package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestValidate(t *testing.T) {
	require.NoError(t, Validate(ServiceRecord{ID: "r1", StartDateTime: t0}))
	require.ErrorIs(t, Validate(ServiceRecord{ID: "  ", StartDateTime: t0}), ErrMissingID)
	require.ErrorIs(t, Validate(ServiceRecord{ID: "r1"}), ErrMissingStart)
}

func TestNormalize_DefaultsAndOrdering(t *testing.T) {
	in := ServiceRecord{
		ID:            "r1",
		StartDateTime: t0.In(time.FixedZone("X", 3600)).Add(123456 * time.Nanosecond),
		Photos:        nil,
		UpdatedAt:     t0.Add(-time.Hour),
		CreatedAt:     t0,
	}

	out := Normalize(in)

	require.NotNil(t, out.Photos)
	assert.Empty(t, out.Photos)
	assert.Equal(t, time.UTC, out.StartDateTime.Location())
	assert.Equal(t, 0, out.StartDateTime.Nanosecond()%int(time.Millisecond))
	assert.False(t, out.UpdatedAt.Before(out.CreatedAt))
	assert.Equal(t, out.CreatedAt, out.UpdatedAt)
}

func TestNormalize_MissingCreatedAtFallsBack(t *testing.T) {
	out := Normalize(ServiceRecord{ID: "r1", StartDateTime: t0, UpdatedAt: t0.Add(time.Minute)})
	assert.Equal(t, t0.Add(time.Minute), out.CreatedAt)

	out = Normalize(ServiceRecord{ID: "r1", StartDateTime: t0})
	assert.Equal(t, t0, out.CreatedAt)
	assert.Equal(t, t0, out.UpdatedAt)
}

func TestNormalize_DropsEmptyPhotosAndDoesNotAlias(t *testing.T) {
	in := ServiceRecord{ID: "r1", StartDateTime: t0, Photos: []PhotoRef{{}, {Data: []byte{1}}, {URL: "u"}}}
	out := Normalize(in)
	require.Len(t, out.Photos, 2)

	out.Photos[0].Data[0] = 9
	assert.Equal(t, byte(1), in.Photos[1].Data[0])
}

func TestNormalize_IsStableAcrossRepeatedCalls(t *testing.T) {
	in := ServiceRecord{ID: "r1", StartDateTime: t0}
	assert.Equal(t, Normalize(in), Normalize(Normalize(in)))
}

func TestNextUpdatedAt_StrictlyIncreases(t *testing.T) {
	prev := t0
	assert.Equal(t, t0.Add(time.Second), NextUpdatedAt(prev, t0.Add(time.Second)))
	assert.Equal(t, t0.Add(Precision), NextUpdatedAt(prev, t0))
	assert.Equal(t, t0.Add(Precision), NextUpdatedAt(prev, t0.Add(-time.Hour)))
	assert.Equal(t, t0, NextUpdatedAt(time.Time{}, t0))
}

func TestDirty_FiltersUnsynced(t *testing.T) {
	records := []ServiceRecord{{ID: "a", Synced: true}, {ID: "b"}, {ID: "c", Synced: false}}
	got := Dirty(records)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	assert.NotNil(t, Dirty(nil))
}

func TestResolve_LastWriterWins(t *testing.T) {
	local := ServiceRecord{ID: "r", Details: "local", UpdatedAt: t0.Add(2 * time.Second)}
	remote := ServiceRecord{ID: "r", Details: "remote", UpdatedAt: t0.Add(time.Second)}

	assert.Equal(t, "local", Resolve(local, remote).Details)

	local.UpdatedAt = t0
	assert.Equal(t, "remote", Resolve(local, remote).Details)
}

func TestResolve_Determinism(t *testing.T) {
	for i := -5; i <= 5; i++ {
		if i == 0 {
			continue
		}
		local := ServiceRecord{ID: "r", Details: "L", UpdatedAt: t0.Add(time.Duration(i) * time.Millisecond)}
		remote := ServiceRecord{ID: "r", Details: "R", UpdatedAt: t0}
		want := "R"
		if i > 0 {
			want = "L"
		}
		assert.Equal(t, want, Resolve(local, remote).Details)
	}
}

func TestResolve_TieKeepsRemote(t *testing.T) {
	local := ServiceRecord{ID: "r", Details: "L", UpdatedAt: t0}
	remote := ServiceRecord{ID: "r", Details: "R", UpdatedAt: t0}
	assert.Equal(t, "R", Resolve(local, remote).Details)
}

func TestSortByUpdatedDesc(t *testing.T) {
	rs := []ServiceRecord{
		{ID: "b", UpdatedAt: t0},
		{ID: "c", UpdatedAt: t0.Add(time.Minute)},
		{ID: "a", UpdatedAt: t0},
	}
	SortByUpdatedDesc(rs)
	assert.Equal(t, []string{"c", "a", "b"}, []string{rs[0].ID, rs[1].ID, rs[2].ID})
}
