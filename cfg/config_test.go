package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, c.PollInterval())
	assert.Equal(t, 120*time.Minute, c.SuppressionWindow())
	assert.Equal(t, 5, c.Allocation.MaxAttempts)
	assert.Equal(t, []string{"09:00", "18:00"}, c.Notify.ReportTimes)
	assert.Equal(t, "공사 현황!A:AM", c.Sheet.Range)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sheetsync.toml")
	content := `
[sheet]
spreadsheet_id = "1AbC"

[poll]
interval_seconds = 30

[suppression]
window_minutes = 60

[mapping.company_prefixes]
"글로벌" = "G"

[mapping.owner_suffixes]
"박용구" = "yg"

[notify.sales_emails]
"박용구" = "yg@company.example"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "1AbC", c.Sheet.SpreadsheetID)
	assert.Equal(t, 30*time.Second, c.PollInterval())
	assert.Equal(t, 60*time.Minute, c.SuppressionWindow())
	assert.Equal(t, "G", c.Mapping.CompanyPrefixes["글로벌"])
	assert.Equal(t, "yg", c.Mapping.OwnerSuffixes["박용구"])
	assert.Equal(t, "yg@company.example", c.Notify.SalesEmails["박용구"])

	// Untouched sections keep their defaults.
	assert.Equal(t, 5, c.Allocation.MaxAttempts)
	assert.Equal(t, 8080, c.Server.Port)
}

func TestLoad_MissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
