package store

import (
	"context"
	"testing"
)

func TestPutSettingLastWriteWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.PutSetting(ctx, "daily_goal", "10"); err != nil {
		t.Fatalf("PutSetting failed: %v", err)
	}
	if err := st.PutSetting(ctx, "daily_goal", "25"); err != nil {
		t.Fatalf("second PutSetting failed: %v", err)
	}

	value, ok, err := st.GetSetting(ctx, "daily_goal")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if !ok || value != "25" {
		t.Errorf("GetSetting = (%q, %v), want (\"25\", true)", value, ok)
	}
}

func TestGetSettingMissing(t *testing.T) {
	st := newTestStore(t)

	value, ok, err := st.GetSetting(context.Background(), "nope")
	if err != nil {
		t.Fatalf("GetSetting failed: %v", err)
	}
	if ok || value != "" {
		t.Errorf("GetSetting = (%q, %v), want (\"\", false)", value, ok)
	}
}

func TestAllSettings(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	want := map[string]string{
		"daily_goal":    "10",
		"ui_language":   "en",
		"notifications": "off",
	}
	for key, value := range want {
		if err := st.PutSetting(ctx, key, value); err != nil {
			t.Fatalf("PutSetting %s failed: %v", key, err)
		}
	}

	got, err := st.AllSettings(ctx)
	if err != nil {
		t.Fatalf("AllSettings failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("AllSettings returned %d entries, want %d", len(got), len(want))
	}
	for key, value := range want {
		if got[key] != value {
			t.Errorf("setting %s = %q, want %q", key, got[key], value)
		}
	}
}

func TestPutSettingRequiresKey(t *testing.T) {
	st := newTestStore(t)

	if err := st.PutSetting(context.Background(), "", "v"); err == nil {
		t.Error("expected error for empty key")
	}
}
