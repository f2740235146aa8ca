package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Veraticus/tally/internal/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20240315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>NZD
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>12-3456-7890123-00
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20240101120000[0:GMT]
<DTEND>20240131120000[0:GMT]
<STMTTRN>
<TRNTYPE>POS
<DTPOSTED>20240115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2024011501
<NAME>EFTPOS COUNTDOWN PONSONBY
</STMTTRN>
<STMTTRN>
<TRNTYPE>POS
<DTPOSTED>20240122120000[0:GMT]
<TRNAMT>-61.20
<FITID>2024012201
<NAME>EFTPOS COUNTDOWN PONSONBY
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20240131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

// isolate points configuration and data at a fresh temp directory and
// returns the database path.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	viper.Reset()
	t.Cleanup(viper.Reset)
	return filepath.Join(dir, "tally.db")
}

func runCLI(t *testing.T, dbPath string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--db", dbPath, "--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, dbPath string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dbPath, args...)
	require.NoError(t, err, "tally %s\n%s", strings.Join(args, " "), out)
	return out
}

func TestCLI_Workflow(t *testing.T) {
	db := isolate(t)
	statement := filepath.Join(t.TempDir(), "statement.ofx")
	require.NoError(t, os.WriteFile(statement, []byte(statementOFX), 0o600))

	out := mustRun(t, db, "accounts", "add", "Everyday", "--type", "personal")
	assert.Contains(t, out, `Created personal account "Everyday"`)

	out = mustRun(t, db, "categories", "add", "Groceries", "--description", "Supermarkets and food shopping")
	assert.Contains(t, out, `Created category "Groceries"`)

	out = mustRun(t, db, "import", "--account", "everyday", statement)
	assert.Contains(t, out, "Imported 2 transactions")

	out = mustRun(t, db, "import", "--account", "Everyday", statement)
	assert.Contains(t, out, "Imported 0 transactions")
	assert.Contains(t, out, "2 already present")

	out = mustRun(t, db, "categorize", "--all-pending")
	assert.Contains(t, out, "COUNTDOWN")
	assert.Contains(t, out, "2 suggestions")

	out = mustRun(t, db, "apply", "1", "--classification", "personal", "--category", "Groceries")
	assert.Contains(t, out, "Confirmed transaction 1 as personal")
	assert.Contains(t, out, "Learned rule")

	out = mustRun(t, db, "rules", "list")
	assert.Contains(t, out, "Groceries")
	assert.Contains(t, out, "personal")

	out = mustRun(t, db, "categorize", "--rules-only", "2")
	assert.Contains(t, out, "1 suggestions: 1 rule")

	out = mustRun(t, db, "similar", "2", "--include-categorized")
	assert.Contains(t, out, "COUNTDOWN")

	out = mustRun(t, db, "stats")
	assert.Contains(t, out, "User confirmed")

	out = mustRun(t, db, "reset", "1")
	assert.Contains(t, out, "Reset transaction 1")

	out = mustRun(t, db, "model-info")
	assert.Contains(t, out, "No trained model")

	out = mustRun(t, db, "train")
	assert.Contains(t, out, "Training skipped")

	out = mustRun(t, db, "migrate", "--status")
	assert.NotContains(t, out, "Error")
}

func TestCLI_Errors(t *testing.T) {
	db := isolate(t)

	tests := []struct {
		want error
		name string
		msg  string
		args []string
	}{
		{
			name: "categorize needs a target",
			args: []string{"categorize"},
			msg:  "give transaction ids or --all-pending",
		},
		{
			name: "categorize conflicting flags",
			args: []string{"categorize", "--rules-only", "--force-llm", "1"},
			msg:  "mutually exclusive",
		},
		{
			name: "bad transaction id",
			args: []string{"apply", "abc", "--classification", "personal"},
			want: common.ErrValidation,
		},
		{
			name: "unknown transaction",
			args: []string{"apply", "999", "--classification", "personal"},
			want: common.ErrNotFound,
		},
		{
			name: "unknown category",
			args: []string{"apply", "1", "--classification", "personal", "--category", "Yachts"},
			want: common.ErrNotFound,
		},
		{
			name: "bad classification",
			args: []string{"apply", "1", "--classification", "corporate"},
			msg:  "invalid classification",
		},
		{
			name: "predict without model",
			args: []string{"predict", "1"},
			want: common.ErrNoModel,
		},
		{
			name: "bad account type",
			args: []string{"accounts", "add", "Boat", "--type", "yacht"},
			msg:  "invalid account type",
		},
		{
			name: "auto-categorize confidence out of range",
			args: []string{"auto-categorize", "--min-confidence", "1.5"},
			msg:  "between 0 and 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, db, tt.args...)
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
			if tt.msg != "" {
				assert.Contains(t, err.Error(), tt.msg)
			}
		})
	}
}

func TestCLI_InvalidLogLevel(t *testing.T) {
	db := isolate(t)
	_, err := runCLI(t, db, "--log-level", "loud", "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestCLI_Version(t *testing.T) {
	db := isolate(t)
	out := mustRun(t, db, "version")
	assert.Contains(t, out, "tally dev")
}
