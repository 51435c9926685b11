package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hostalia/concierge/internal/store"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "concierge.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKBRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	entries := []store.KBEntry{
		{ID: "a", Topic: "desayuno", Content: "El desayuno es de 7 a 10", Category: "restaurante"},
		{ID: "b", Topic: "parking", Content: "Parking gratuito para huéspedes"},
		{ID: "c", Topic: "spa", Content: "Spa abierto hasta las 21h"},
	}
	for _, e := range entries {
		if err := s.Add(ctx, e); err != nil {
			t.Fatalf("Add(%s): %v", e.ID, err)
		}
	}

	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d entries, want 3", len(all))
	}

	got, err := s.Search(ctx, "PARKING", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Search(PARKING) = %+v, want entry b", got)
	}

	// Search also matches content and category.
	got, err = s.Search(ctx, "restaurante", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("Search(restaurante) = %+v, want entry a", got)
	}

	n, err := s.Remove(ctx, []string{"a", "c", "missing"})
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if n != 2 {
		t.Errorf("Remove = %d, want 2", n)
	}
	all, _ = s.List(ctx, 0)
	if len(all) != 1 || all[0].ID != "b" {
		t.Errorf("after Remove: %+v", all)
	}
}

func TestKBAddGeneratesID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Add(ctx, store.KBEntry{Topic: "wifi", Content: "clave: hotel2026"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	all, err := s.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID == "" {
		t.Errorf("entry = %+v, want generated ID", all)
	}
	if all[0].CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestFlagLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	conv := "whatsapp:34600111222"

	if _, ok, err := s.GetFlag(ctx, conv, "lang"); err != nil || ok {
		t.Fatalf("GetFlag before set = ok=%v err=%v", ok, err)
	}

	if err := s.SetFlag(ctx, conv, "lang", "es"); err != nil {
		t.Fatalf("SetFlag: %v", err)
	}
	if err := s.SetFlag(ctx, conv, "lang", "en"); err != nil {
		t.Fatalf("SetFlag overwrite: %v", err)
	}

	v, ok, err := s.GetFlag(ctx, conv, "lang")
	if err != nil || !ok || v != "en" {
		t.Fatalf("GetFlag = %q ok=%v err=%v, want en", v, ok, err)
	}

	// Flags are scoped per conversation.
	if _, ok, _ := s.GetFlag(ctx, "whatsapp:other", "lang"); ok {
		t.Error("flag leaked across conversations")
	}

	if err := s.ClearFlag(ctx, conv, "lang"); err != nil {
		t.Fatalf("ClearFlag: %v", err)
	}
	if _, ok, _ := s.GetFlag(ctx, conv, "lang"); ok {
		t.Error("flag survived ClearFlag")
	}
	// Clearing again is a no-op.
	if err := s.ClearFlag(ctx, conv, "lang"); err != nil {
		t.Errorf("ClearFlag twice: %v", err)
	}
}

func TestHistoryRecentReturnsTailInOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	conv := "whatsapp:34600111222"

	msgs := []string{"hola", "buenas", "¿hay parking?", "¿y spa?", "gracias"}
	for _, m := range msgs {
		if err := s.Append(ctx, conv, "guest", m); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	s.Append(ctx, "whatsapp:other", "guest", "otra conversación")

	got, err := s.Recent(ctx, conv, 3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(got))
	}
	want := []string{"¿hay parking?", "¿y spa?", "gracias"}
	for i, w := range want {
		if got[i].Content != w {
			t.Errorf("entry %d = %q, want %q", i, got[i].Content, w)
		}
	}
}
