package battleexport_test

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ragrace/internal/battleexport"
	"ragrace/internal/domain"
)

func sampleItems() []domain.BattleHistoryItem {
	return []domain.BattleHistoryItem{
		{
			BattleID:     uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			DocumentName: "report.pdf",
			PageNumber:   3,
			Status:       domain.BattleStatusSuccess,
			Assignments: []domain.BattleAssignment{
				{Label: "A", Provider: domain.ProviderReducto},
				{Label: "B", Provider: domain.ProviderLlamaIndex},
			},
			PreferredLabels: []string{"B"},
			Winner:          domain.ProviderLlamaIndex,
			Comment:         "tables, intact",
			CreatedAt:       time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestRow(t *testing.T) {
	items := sampleItems()
	row := battleexport.Row(&items[0])

	require.Len(t, row, len(battleexport.Columns()))
	assert.Equal(t, "11111111-1111-1111-1111-111111111111", row[0])
	assert.Equal(t, "3", row[2])
	assert.Equal(t, domain.ProviderReducto, row[4])
	assert.Equal(t, domain.ProviderLlamaIndex, row[5])
	assert.Equal(t, "", row[6])
	assert.Equal(t, "B", row[8])
	assert.Equal(t, "2025-03-01T12:00:00Z", row[11])
}

func TestWriter_CSV(t *testing.T) {
	var buf bytes.Buffer
	w := battleexport.NewWriter(&buf)
	require.NoError(t, w.WriteHeader())
	require.NoError(t, w.WriteBattles(sampleItems()))
	w.Flush()
	require.NoError(t, w.Error())

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Battle ID", records[0][0])
	assert.Equal(t, "tables, intact", records[1][10])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, battleexport.WriteXLSX(&buf, sampleItems()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("Battles")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, battleexport.Columns(), rows[0])
	assert.Equal(t, "report.pdf", rows[1][1])
	assert.Equal(t, domain.ProviderLlamaIndex, rows[1][9])
}

func TestBuildFilename(t *testing.T) {
	name := battleexport.BuildFilename("Q1 battles!!", battleexport.FormatXLSX)
	assert.True(t, strings.HasPrefix(name, "Q1_battles_"))
	assert.True(t, strings.HasSuffix(name, ".xlsx"))

	assert.True(t, strings.HasPrefix(battleexport.BuildFilename("", battleexport.FormatCSV), "battles_"))
}
