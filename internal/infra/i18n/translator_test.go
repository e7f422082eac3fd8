//go:build !integration

package i18n

import (
	"testing"
)

func TestTranslator(t *testing.T) {
	contentBytes := []byte("greeting: 你好\nwelcome_user: 你好 %s")
	translator, err := newTranslatorFromBytes(contentBytes)
	if err != nil {
		t.Fatalf("newTranslatorFromBytes failed: %v", err)
	}

	t.Run("should translate a simple key", func(t *testing.T) {
		if got, want := translator.T("greeting"), "你好"; got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should return key if not found", func(t *testing.T) {
		if got, want := translator.T("nonexistent_key"), "nonexistent_key"; got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})

	t.Run("should format arguments correctly", func(t *testing.T) {
		if got, want := translator.T("welcome_user", "Ali"), "你好 Ali"; got != want {
			t.Errorf("wanted '%s', got '%s'", want, got)
		}
	})
}

func TestEmbeddedLocalesHaveSameKeys(t *testing.T) {
	zh, err := NewTranslator(LocalesFS, "zh")
	if err != nil {
		t.Fatalf("zh: %v", err)
	}
	en, err := NewTranslator(LocalesFS, "en")
	if err != nil {
		t.Fatalf("en: %v", err)
	}
	for k := range zh.translations {
		if !en.Has(k) {
			t.Errorf("en is missing %q", k)
		}
	}
	for k := range en.translations {
		if !zh.Has(k) {
			t.Errorf("zh is missing %q", k)
		}
	}
	if zh.T("deny.code_disabled") != "激活码已停用，请联系管理员。" {
		t.Errorf("unexpected zh text %q", zh.T("deny.code_disabled"))
	}
	if _, err := NewTranslator(LocalesFS, "fr"); err == nil {
		t.Error("unknown language should fail")
	}
}
