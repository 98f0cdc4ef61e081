package cache

import (
	"context"
	"sync"
	"testing"

	"cobitis_web/internal/models"
)

func TestMemoryStore_LoadMissing(t *testing.T) {
	s := NewMemoryStore()

	_, ok, err := s.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatalf("expected no stored preferences")
	}
}

func TestMemoryStore_SaveThenLoad(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Save(ctx, 7, models.Preferences{RangeIndex: 2, SensorIndex: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, 8, models.Preferences{RangeIndex: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Load(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.RangeIndex != 2 || got.SensorIndex != 1 {
		t.Fatalf("unexpected preferences: %+v", got)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(uid int) {
			defer wg.Done()
			_ = s.Save(ctx, uid, models.Preferences{RangeIndex: uid % 4})
			_, _, _ = s.Load(ctx, uid)
		}(i)
	}
	wg.Wait()

	got, ok, _ := s.Load(ctx, 5)
	if !ok || got.RangeIndex != 1 {
		t.Fatalf("unexpected preferences for user 5: %+v ok=%v", got, ok)
	}
}

func TestPreferenceKey(t *testing.T) {
	if got := preferenceKey(42); got != "prefs:42" {
		t.Fatalf("got %q", got)
	}
}
