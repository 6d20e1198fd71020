package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type AuditFields struct {
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type sampleRow struct {
	ID     string `db:"id"`
	Number string `db:"number"`
	Kind   string `db:"-"`
	Label  string
	AuditFields
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[sampleRow]()
	assert.Equal(t, []string{"id", "number", "created_at", "updated_at"}, cols)
}

func TestExtractDBColumns_PointerWithEmbeddedStruct(t *testing.T) {
	var cols []string
	require.NotPanics(t, func() { cols = ExtractDBColumns[*sampleRow]() })
	assert.Equal(t, []string{"id", "number", "created_at", "updated_at"}, cols)
}

func TestStructToMap(t *testing.T) {
	now := time.Now().UTC()
	row := &sampleRow{ID: "a", Number: "2025-001", Kind: "invoice", AuditFields: AuditFields{CreatedAt: now}}

	m := StructToMap(row)
	assert.Len(t, m, 4)
	assert.Equal(t, "2025-001", m["number"])
	assert.Equal(t, now, m["created_at"])
	assert.NotContains(t, m, "Kind")

	assert.Nil(t, StructToMap(42))
	assert.Nil(t, StructToMap((*sampleRow)(nil)))
}

func TestPickColumns(t *testing.T) {
	data := map[string]any{"id": 1, "number": "2025-001", "extra": true}
	assert.Equal(t, map[string]any{"id": 1, "number": "2025-001"}, PickColumns(data, []string{"id", "number", "missing"}))
}
