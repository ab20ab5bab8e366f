package checksum

import (
	"testing"
	"time"
)

func TestGenerateContentHash(t *testing.T) {
	gen := NewGenerator()

	url := "https://www.xda-developers.com/pixel-update/"
	title := "Pixel update rolls out"
	description := "Google ships the March patch"
	date := time.Date(2024, 3, 20, 23, 59, 59, 0, time.UTC)

	hash1 := gen.GenerateContentHash(url, title, description, date)
	hash2 := gen.GenerateContentHash(url, title, description, date)

	// Хеш должен быть детерминированным
	if hash1 != hash2 {
		t.Errorf("Hash not deterministic: %s != %s", hash1, hash2)
	}

	if len(hash1) != 64 {
		t.Errorf("Hash wrong length: %d, expected 64", len(hash1))
	}

	tests := []struct {
		name string
		hash string
	}{
		{"title", gen.GenerateContentHash(url, "Another title", description, date)},
		{"description", gen.GenerateContentHash(url, title, "", date)},
		{"time of day", gen.GenerateContentHash(url, title, description, date.Add(-time.Hour))},
		{"url", gen.GenerateContentHash(url+"?x=1", title, description, date)},
	}
	for _, tt := range tests {
		if tt.hash == hash1 {
			t.Errorf("Hash should change when %s changes", tt.name)
		}
	}

	// Один и тот же момент в другой зоне даёт тот же хеш
	warsaw := time.FixedZone("CET", 3600)
	if got := gen.GenerateContentHash(url, title, description, date.In(warsaw)); got != hash1 {
		t.Errorf("Hash depends on time zone")
	}
}

func TestVerifyContentHash(t *testing.T) {
	gen := NewGenerator()

	url := "https://spidersweb.pl/2024/03/test"
	title := "Nowy telefon"
	description := "Opis artykułu"
	date := time.Date(2024, 3, 15, 23, 59, 59, 0, time.UTC)

	hash := gen.GenerateContentHash(url, title, description, date)

	if !gen.VerifyContentHash(hash, url, title, description, date) {
		t.Errorf("VerifyContentHash failed for correct data")
	}

	if gen.VerifyContentHash(hash, url, "Inny tytuł", description, date) {
		t.Errorf("VerifyContentHash should fail for wrong title")
	}
}
