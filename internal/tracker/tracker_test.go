package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/data/redisStore"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func backends(t *testing.T) map[string]func(t *testing.T) documentModel.Tracker {
	return map[string]func(t *testing.T) documentModel.Tracker{
		"memory": func(t *testing.T) documentModel.Tracker {
			return NewMemoryTracker()
		},
		"sqlite": func(t *testing.T) documentModel.Tracker {
			tr, err := OpenSQLite(filepath.Join(t.TempDir(), "tracker.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = tr.Close() })
			return tr
		},
		"redis": func(t *testing.T) documentModel.Tracker {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return NewRedisTracker(redisStore.NewTestStore(client))
		},
	}
}

func record(url string, category documentModel.Category) documentModel.DocumentRecord {
	canonical, _ := Canonicalize(url)
	return documentModel.DocumentRecord{
		ID:        DocumentID(canonical),
		Category:  category,
		SourceURL: canonical,
		Format:    documentModel.PDF,
		LocalPath: "data/documents/" + string(category) + ".pdf",
	}
}

func TestTracker_Contract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.WithValue(context.Background(), config.TRACE_ID_KEY, "tracker-test")

			t.Run("record and lookup", func(t *testing.T) {
				tr := open(t)
				rec := record("https://irdai.gov.in/doc/a.pdf", documentModel.Circular)

				known, err := tr.IsKnown(ctx, rec.ID)
				require.NoError(t, err)
				assert.False(t, known)

				require.NoError(t, tr.Record(ctx, rec))

				known, err = tr.IsKnown(ctx, rec.ID)
				require.NoError(t, err)
				assert.True(t, known)

				got, found, err := tr.Get(ctx, rec.ID)
				require.NoError(t, err)
				require.True(t, found)
				assert.Equal(t, documentModel.StatusPending, got.Status)
				assert.Equal(t, rec.SourceURL, got.SourceURL)
				assert.False(t, got.FirstSeen.IsZero())
			})

			t.Run("upsert keeps first seen", func(t *testing.T) {
				tr := open(t)
				rec := record("https://irdai.gov.in/doc/b.pdf", documentModel.Regulation)
				first := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
				rec.FirstSeen = first
				require.NoError(t, tr.Record(ctx, rec))

				rec.FirstSeen = first.Add(48 * time.Hour)
				rec.Title = "Updated title"
				require.NoError(t, tr.Record(ctx, rec))

				got, _, err := tr.Get(ctx, rec.ID)
				require.NoError(t, err)
				assert.True(t, got.FirstSeen.Equal(first), "first seen moved to %v", got.FirstSeen)
				assert.Equal(t, "Updated title", got.Title)

				list, err := tr.ListByCategory(ctx, documentModel.Regulation)
				require.NoError(t, err)
				assert.Len(t, list, 1)
			})

			t.Run("category listing keeps insertion order", func(t *testing.T) {
				tr := open(t)
				a := record("https://irdai.gov.in/doc/1.pdf", documentModel.Guideline)
				b := record("https://irdai.gov.in/doc/2.pdf", documentModel.Guideline)
				c := record("https://irdai.gov.in/doc/3.pdf", documentModel.Notification)
				for _, r := range []documentModel.DocumentRecord{a, b, c} {
					require.NoError(t, tr.Record(ctx, r))
				}

				list, err := tr.ListByCategory(ctx, documentModel.Guideline)
				require.NoError(t, err)
				require.Len(t, list, 2)
				assert.Equal(t, a.ID, list[0].ID)
				assert.Equal(t, b.ID, list[1].ID)

				empty, err := tr.ListByCategory(ctx, documentModel.Circular)
				require.NoError(t, err)
				assert.Empty(t, empty)
			})

			t.Run("status transitions", func(t *testing.T) {
				tr := open(t)
				ok := record("https://irdai.gov.in/doc/ok.pdf", documentModel.Circular)
				bad := record("https://irdai.gov.in/doc/bad.pdf", documentModel.Circular)
				require.NoError(t, tr.Record(ctx, ok))
				require.NoError(t, tr.Record(ctx, bad))

				require.NoError(t, tr.MarkIngested(ctx, ok.ID, "hash-1", 12))
				require.NoError(t, tr.MarkFailed(ctx, bad.ID, "corrupt pdf"))

				got, _, err := tr.Get(ctx, ok.ID)
				require.NoError(t, err)
				assert.Equal(t, documentModel.StatusIngested, got.Status)
				assert.Equal(t, 12, got.ChunkCount)
				assert.Equal(t, "hash-1", got.ContentHash)

				failed, err := tr.ListByStatus(ctx, documentModel.StatusFailed)
				require.NoError(t, err)
				require.Len(t, failed, 1)
				assert.Equal(t, "corrupt pdf", failed[0].LastError)

				all, err := tr.ListByStatus(ctx)
				require.NoError(t, err)
				assert.Len(t, all, 2)

				stats, err := Stats(ctx, tr)
				require.NoError(t, err)
				for _, s := range stats {
					if s.Category == documentModel.Circular {
						assert.Equal(t, 2, s.Total)
						assert.Equal(t, 1, s.Ingested)
						assert.Equal(t, 1, s.Failed)
						assert.Equal(t, 12, s.Chunks)
					}
				}
			})

			t.Run("touch updates last verified", func(t *testing.T) {
				tr := open(t)
				rec := record("https://irdai.gov.in/doc/t.pdf", documentModel.Circular)
				require.NoError(t, tr.Record(ctx, rec))

				when := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
				require.NoError(t, tr.Touch(ctx, rec.ID, when))
				got, _, err := tr.Get(ctx, rec.ID)
				require.NoError(t, err)
				assert.True(t, got.LastVerified.Equal(when))
			})

			t.Run("updates on unknown ids fail", func(t *testing.T) {
				tr := open(t)
				err := tr.MarkIngested(ctx, "ghost", "h", 1)
				require.Error(t, err)
				assert.True(t, errors.Is(err, errorModel.ErrNotFound))
				var se *errorModel.StorageError
				assert.True(t, errors.As(err, &se))
			})

			t.Run("concurrent upserts of one document", func(t *testing.T) {
				tr := open(t)
				rec := record("https://irdai.gov.in/doc/race.pdf", documentModel.Notification)

				var wg sync.WaitGroup
				for i := 0; i < 20; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						assert.NoError(t, tr.Record(ctx, rec))
					}()
				}
				wg.Wait()

				list, err := tr.ListByCategory(ctx, documentModel.Notification)
				require.NoError(t, err)
				assert.Len(t, list, 1)
			})
		})
	}
}

func TestSQLiteTracker_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.db")
	ctx := context.Background()
	rec := record("https://irdai.gov.in/doc/persist.pdf", documentModel.Regulation)

	tr, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, tr.Record(ctx, rec))
	require.NoError(t, tr.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	known, err := reopened.IsKnown(ctx, rec.ID)
	require.NoError(t, err)
	assert.True(t, known)
}

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases scheme and host", "HTTPS://IRDAI.gov.in/Doc/A.pdf", "https://irdai.gov.in/Doc/A.pdf"},
		{"drops default port", "https://irdai.gov.in:443/a.pdf", "https://irdai.gov.in/a.pdf"},
		{"keeps custom port", "http://localhost:8080/a.pdf", "http://localhost:8080/a.pdf"},
		{"drops fragment", "https://irdai.gov.in/a.pdf#page=2", "https://irdai.gov.in/a.pdf"},
		{"sorts query", "https://irdai.gov.in/get?b=2&a=1", "https://irdai.gov.in/get?a=1&b=2"},
		{"drops tracking params", "https://irdai.gov.in/get?id=7&utm_source=mail", "https://irdai.gov.in/get?id=7"},
		{"trims trailing slash", "https://irdai.gov.in/docs/", "https://irdai.gov.in/docs"},
		{"ipv6 with port", "http://[::1]:8080/a.pdf", "http://[::1]:8080/a.pdf"},
		{"ipv6 default port", "https://[2001:DB8::1]:443/a.pdf", "https://[2001:db8::1]/a.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonicalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			again, err := Canonicalize(got)
			require.NoError(t, err, "canonical form must parse again")
			assert.Equal(t, got, again)
		})
	}

	t.Run("ignored params", func(t *testing.T) {
		got, err := Canonicalize("https://irdai.gov.in/get?id=7&download=true", "download")
		require.NoError(t, err)
		assert.Equal(t, "https://irdai.gov.in/get?id=7", got)
	})

	t.Run("relative urls are rejected", func(t *testing.T) {
		_, err := Canonicalize("/doc/a.pdf")
		assert.Error(t, err)
	})
}

func TestDocumentID_StableAcrossSpellings(t *testing.T) {
	a, err := Canonicalize("https://IRDAI.gov.in:443/doc/a.pdf#x")
	require.NoError(t, err)
	b, err := Canonicalize("https://irdai.gov.in/doc/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, DocumentID(a), DocumentID(b))
	assert.Len(t, DocumentID(a), 32)
	assert.NotEqual(t, DocumentID(a), DocumentID(a+"x"))
}

func TestLockers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	lockers := map[string]Locker{
		"memory": NewMemoryLocker(),
		"redis":  NewRedisLocker(redisStore.NewTestStore(client), time.Minute),
	}
	for name, locker := range lockers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release, ok, err := locker.Acquire(ctx, "doc-1")
			require.NoError(t, err)
			require.True(t, ok)

			_, ok, err = locker.Acquire(ctx, "doc-1")
			require.NoError(t, err)
			assert.False(t, ok, "second acquire must not succeed while held")

			other, ok, err := locker.Acquire(ctx, "doc-2")
			require.NoError(t, err)
			assert.True(t, ok)
			other()

			release()
			release()

			again, ok, err := locker.Acquire(ctx, "doc-1")
			require.NoError(t, err)
			assert.True(t, ok)
			again()
		})
	}
}
