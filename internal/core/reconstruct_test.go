package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconstructManyDedupes(t *testing.T) {
	f, tb := albumWithTracks(t)
	f.rows = []Record{
		{"AlbumId": int64(1), "Title": "Let There Be Rock", "ArtistId": int64(1),
			"Tracks_TrackId": int64(15), "Tracks_Name": "Go Down", "Tracks_AlbumId": int64(1), "Tracks_Composer": "AC/DC", "Tracks_Bytes": int64(100)},
		{"AlbumId": int64(1), "Title": "Let There Be Rock", "ArtistId": int64(1),
			"Tracks_TrackId": int64(16), "Tracks_Name": "Dog Eat Dog", "Tracks_AlbumId": int64(1), "Tracks_Composer": "AC/DC", "Tracks_Bytes": int64(200)},
		{"AlbumId": int64(1), "Title": "Let There Be Rock", "ArtistId": int64(1),
			"Tracks_TrackId": int64(16), "Tracks_Name": "Dog Eat Dog", "Tracks_AlbumId": int64(1), "Tracks_Composer": "AC/DC", "Tracks_Bytes": int64(200)},
	}

	out, err := tb.Include("Tracks").End().Select(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)

	album := out[0]
	assert.Equal(t, "Let There Be Rock", album.String("Title"))
	assert.False(t, album.Has("Tracks_TrackId"))

	tracks := album.Records("Tracks")
	require.Len(t, tracks, 2)
	assert.Equal(t, int64(15), tracks[0].Int("TrackId"))
	assert.Equal(t, "Go Down", tracks[0].String("Name"))
	assert.Equal(t, int64(16), tracks[1].Int("TrackId"))
}

func TestReconstructManyUnmatchedIsEmptySlice(t *testing.T) {
	f, tb := albumWithTracks(t)
	f.rows = []Record{
		{"AlbumId": int64(7), "Title": "Silence", "ArtistId": int64(2),
			"Tracks_TrackId": nil, "Tracks_Name": nil, "Tracks_AlbumId": nil, "Tracks_Composer": nil, "Tracks_Bytes": nil},
	}

	out, err := tb.Include("Tracks").End().Select(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)

	tracks := out[0].Records("Tracks")
	assert.NotNil(t, tracks)
	assert.Empty(t, tracks)
}

func TestReconstructOneNestsObjectOrNil(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Album")
	require.NoError(t, err)
	tb.HasOne("Artist").WithKeys("ArtistId", "ArtistId")

	f.rows = []Record{
		{"AlbumId": int64(1), "Title": "Powerage", "ArtistId": int64(1),
			"Artist_ArtistId": int64(1), "Artist_Name": "AC/DC"},
		{"AlbumId": int64(2), "Title": "Orphan", "ArtistId": int64(99),
			"Artist_ArtistId": nil, "Artist_Name": nil},
	}

	out, err := tb.Include("Artist").End().Select(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 2)

	matched := out[0].Nested("Artist")
	require.NotNil(t, matched)
	assert.Equal(t, "AC/DC", matched.String("Name"))

	assert.True(t, out[1].Has("Artist"))
	assert.Nil(t, out[1]["Artist"])
}

func TestReconstructMultiLevel(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Artist")
	require.NoError(t, err)
	tb.HasMany("Albums").FromTable("Album").WithKeys("ArtistId", "ArtistId").
		AndThatHasMany("Tracks").FromTable("Track").WithKeys("AlbumId", "AlbumId")

	f.rows = []Record{
		{"ArtistId": int64(1), "Name": "AC/DC",
			"Albums_AlbumId": int64(1), "Albums_Title": "Let There Be Rock", "Albums_ArtistId": int64(1),
			"Albums_Tracks_TrackId": int64(15), "Albums_Tracks_Name": "Go Down", "Albums_Tracks_AlbumId": int64(1), "Albums_Tracks_Composer": "AC/DC", "Albums_Tracks_Bytes": int64(1)},
		{"ArtistId": int64(1), "Name": "AC/DC",
			"Albums_AlbumId": int64(1), "Albums_Title": "Let There Be Rock", "Albums_ArtistId": int64(1),
			"Albums_Tracks_TrackId": int64(16), "Albums_Tracks_Name": "Dog Eat Dog", "Albums_Tracks_AlbumId": int64(1), "Albums_Tracks_Composer": "AC/DC", "Albums_Tracks_Bytes": int64(2)},
		{"ArtistId": int64(1), "Name": "AC/DC",
			"Albums_AlbumId": int64(4), "Albums_Title": "Powerage", "Albums_ArtistId": int64(1),
			"Albums_Tracks_TrackId": int64(40), "Albums_Tracks_Name": "Gimme a Bullet", "Albums_Tracks_AlbumId": int64(4), "Albums_Tracks_Composer": "AC/DC", "Albums_Tracks_Bytes": int64(3)},
	}

	out, err := tb.Include("Albums").ThenInclude("Tracks").End().Select(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)

	albums := out[0].Records("Albums")
	require.Len(t, albums, 2)
	assert.Len(t, albums[0].Records("Tracks"), 2)
	assert.Len(t, albums[1].Records("Tracks"), 1)
	assert.Equal(t, "Gimme a Bullet", albums[1].Records("Tracks")[0].String("Name"))
}

// A child table without a primary key dedupes by full column tuple.
func TestReconstructManyWithoutChildPrimaryKey(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Track")
	require.NoError(t, err)
	tb.HasMany("Tags").FromTable("Tag").WithKeys("TrackId", "TrackId")

	f.rows = []Record{
		{"TrackId": int64(1), "Name": "Go Down", "AlbumId": int64(1), "Composer": "AC/DC", "Bytes": int64(1),
			"Tags_Label": "live", "Tags_TrackId": int64(1)},
		{"TrackId": int64(1), "Name": "Go Down", "AlbumId": int64(1), "Composer": "AC/DC", "Bytes": int64(1),
			"Tags_Label": "live", "Tags_TrackId": int64(1)},
		{"TrackId": int64(1), "Name": "Go Down", "AlbumId": int64(1), "Composer": "AC/DC", "Bytes": int64(1),
			"Tags_Label": "remaster", "Tags_TrackId": int64(1)},
	}

	out, err := tb.Include("Tags").End().Select(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Records("Tags"), 2)
}

// Without includes the rows pass through untouched.
func TestReconstructSkippedWithoutIncludes(t *testing.T) {
	f := newFakeExec()
	tb, err := New(f, "Track")
	require.NoError(t, err)

	f.rows = []Record{
		{"TrackId": int64(1), "Name": "a"},
		{"TrackId": int64(1), "Name": "a"},
	}

	out, err := tb.Select(context.Background())
	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestGroupKeyNormalizesDriverTypes(t *testing.T) {
	assert.Equal(t, groupKey(int64(7)), groupKey([]byte("7")))
	assert.Equal(t, groupKey("x"), groupKey([]byte("x")))
	assert.NotEqual(t, groupKey(nil), groupKey("7"))
}
