package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const dateLayout = "2006-01-02T15:04:05.000Z"

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// GenerateContentHash SHA256(url|title|description|date_iso) в hex.
// Меняется при любой правке текста или даты статьи; используется хранилищем,
// чтобы не перезаписывать неизменившиеся строки.
func (g *Generator) GenerateContentHash(url, title, description string, date time.Time) string {
	content := strings.Join([]string{
		url,
		title,
		description,
		date.UTC().Format(dateLayout),
	}, "|")

	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}

// VerifyContentHash проверяет соответствие хеша
func (g *Generator) VerifyContentHash(expectedHash, url, title, description string, date time.Time) bool {
	return g.GenerateContentHash(url, title, description, date) == expectedHash
}
