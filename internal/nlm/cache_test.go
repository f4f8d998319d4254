package nlm

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *NotebookStore {
	t.Helper()
	store, err := OpenNotebookStore(filepath.Join(t.TempDir(), "notebooks.db"))
	if err != nil {
		t.Fatalf("OpenNotebookStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNotebookStore(t *testing.T) {
	ctx := context.Background()
	ref := NotebookRef{
		NotebookID: "2b4e5f60-1111-4222-8333-944455566677",
		SourceID:   "0d9556e1-9e1a-4cfd-966c-aba21ab36d7c",
	}
	const videoURL = "https://www.youtube.com/watch?v=abc123"

	t.Run("miss then hit", func(t *testing.T) {
		store := openTestStore(t)
		if _, ok, err := store.Get(ctx, videoURL); err != nil || ok {
			t.Fatalf("Get on empty store = ok=%v err=%v", ok, err)
		}
		if err := store.Put(ctx, videoURL, ref); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, ok, err := store.Get(ctx, videoURL)
		if err != nil || !ok {
			t.Fatalf("Get after Put = ok=%v err=%v", ok, err)
		}
		if got != ref {
			t.Errorf("got %+v, want %+v", got, ref)
		}
	})

	t.Run("replace whole", func(t *testing.T) {
		store := openTestStore(t)
		if err := store.Put(ctx, videoURL, ref); err != nil {
			t.Fatalf("Put: %v", err)
		}
		next := NotebookRef{
			NotebookID: "99995f60-1111-4222-8333-944455566677",
			SourceID:   "99996e1a-9e1a-4cfd-966c-aba21ab36d7c",
		}
		if err := store.Put(ctx, videoURL, next); err != nil {
			t.Fatalf("Put replace: %v", err)
		}
		got, _, _ := store.Get(ctx, videoURL)
		if got != next {
			t.Errorf("got %+v, want %+v", got, next)
		}
	})

	t.Run("partial ref refused", func(t *testing.T) {
		store := openTestStore(t)
		if err := store.Put(ctx, videoURL, NotebookRef{NotebookID: ref.NotebookID}); err == nil {
			t.Error("expected error for ref without source id")
		}
		if err := store.Put(ctx, videoURL, NotebookRef{SourceID: ref.SourceID}); err == nil {
			t.Error("expected error for ref without notebook id")
		}
		if _, ok, _ := store.Get(ctx, videoURL); ok {
			t.Error("partial ref must not be stored")
		}
	})

	t.Run("delete", func(t *testing.T) {
		store := openTestStore(t)
		if err := store.Put(ctx, videoURL, ref); err != nil {
			t.Fatalf("Put: %v", err)
		}
		if err := store.Delete(ctx, videoURL); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, ok, _ := store.Get(ctx, videoURL); ok {
			t.Error("entry survived Delete")
		}
	})

	t.Run("last notebook", func(t *testing.T) {
		store := openTestStore(t)
		if id, err := store.LastNotebook(ctx); err != nil || id != "" {
			t.Fatalf("LastNotebook on empty store = %q, %v", id, err)
		}
		if err := store.SetLastNotebook(ctx, ref.NotebookID); err != nil {
			t.Fatalf("SetLastNotebook: %v", err)
		}
		if err := store.SetLastNotebook(ctx, "second-id"); err != nil {
			t.Fatalf("SetLastNotebook (update): %v", err)
		}
		id, err := store.LastNotebook(ctx)
		if err != nil || id != "second-id" {
			t.Errorf("LastNotebook = %q, %v; want second-id", id, err)
		}
	})

	t.Run("nil store is inert", func(t *testing.T) {
		var store *NotebookStore
		if err := store.Put(ctx, videoURL, ref); err != nil {
			t.Errorf("nil Put: %v", err)
		}
		if _, ok, err := store.Get(ctx, videoURL); ok || err != nil {
			t.Errorf("nil Get = ok=%v err=%v", ok, err)
		}
		if err := store.Close(); err != nil {
			t.Errorf("nil Close: %v", err)
		}
	})
}
