package sqlparse_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/finquery/finquery/internal/sqlparse"
	_ "github.com/finquery/finquery/testing"
)

func TestExtractTablesJoin(t *testing.T) {
	sql := `SELECT a.account_id, d.A2 FROM account a JOIN district d ON a.district_id = d.district_id`
	got := sqlparse.Sorted(sqlparse.ExtractTables(sql))
	assert.Equal(t, []string{"account", "district"}, got)
}

func TestExtractTablesCaseAndQuoting(t *testing.T) {
	cases := map[string][]string{
		"select * from TRANS":                         {"trans"},
		"SELECT * FROM `loan` JOIN \"card\" ON 1=1":   {"card", "loan"},
		"UPDATE client SET name = 'x'":                {"client"},
		"INSERT INTO disp (disp_id) VALUES (1)":       {"disp"},
		"select 1":                                    nil,
		"SELECT * FROM account, account":              {"account"},
		"SELECT * FROM account WHERE frozen = 'from'": {"account"},
	}
	for sql, want := range cases {
		got := sqlparse.ExtractTables(sql)
		if want == nil {
			assert.Empty(t, got, "sql: %s", sql)
			continue
		}
		assert.Equal(t, want, sqlparse.Sorted(got), "sql: %s", sql)
	}
}

func TestExtractTablesSkipsKeywords(t *testing.T) {
	// "FROM (SELECT" must not produce a phantom table named select.
	sql := `SELECT * FROM (SELECT account_id FROM account) t`
	got := sqlparse.Sorted(sqlparse.ExtractTables(sql))
	assert.Equal(t, []string{"account"}, got)

	// LEFT/INNER after JOIN are scan artifacts, not tables.
	sql = `SELECT * FROM loan l LEFT JOIN account a ON l.account_id = a.account_id`
	got = sqlparse.Sorted(sqlparse.ExtractTables(sql))
	assert.Equal(t, []string{"account", "loan"}, got)
}

func TestExtractTablesIdempotent(t *testing.T) {
	sql := `SELECT * FROM trans JOIN account ON trans.account_id = account.account_id`
	first := sqlparse.Sorted(sqlparse.ExtractTables(sql))
	second := sqlparse.Sorted(sqlparse.ExtractTables(sql))
	assert.Equal(t, first, second)
}

func TestHasTables(t *testing.T) {
	assert.True(t, sqlparse.HasTables("SELECT * FROM card"))
	assert.False(t, sqlparse.HasTables("SELECT 1 + 1"))
	assert.False(t, sqlparse.HasTables(""))
}
