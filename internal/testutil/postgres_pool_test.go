package testutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSNWithSearchPath(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"url", "postgres://u:p@localhost:5432/db?sslmode=disable", "search_path=t_x"},
		{"keyword", "host=localhost dbname=db", "host=localhost dbname=db search_path=t_x"},
		{"keyword replace", "host=localhost search_path=public", "host=localhost search_path=t_x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := dsnWithSearchPath(tt.dsn, "t_x")
			require.NoError(t, err)
			assert.Contains(t, got, tt.want)
		})
	}
}

func TestNewSchemaName(t *testing.T) {
	name := newSchemaName("Repo-Store Test!")
	assert.True(t, strings.HasPrefix(name, "t_repo_store_test_"))
	assert.LessOrEqual(t, len(name), 63)
	assert.NotEqual(t, name, newSchemaName("Repo-Store Test!"))
	assert.True(t, strings.HasPrefix(newSchemaName("!!!"), "t_test_"))
}
