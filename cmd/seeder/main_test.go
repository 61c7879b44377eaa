package main

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingExec struct {
	queries []string
	fail    bool
}

func (r *recordingExec) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	if r.fail {
		return nil, errors.New("syntax error")
	}
	r.queries = append(r.queries, query)
	return nil, nil
}

func TestApplyFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	b := filepath.Join(dir, "b.sql")
	require.NoError(t, os.WriteFile(a, []byte("CREATE TABLE a (id INT);"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("INSERT INTO a VALUES (1);"), 0o600))

	exec := &recordingExec{}
	require.NoError(t, applyFiles(context.Background(), exec, []string{a, b}, zerolog.Nop()))
	assert.Equal(t, []string{"CREATE TABLE a (id INT);", "INSERT INTO a VALUES (1);"}, exec.queries)
}

func TestApplyFilesStopsOnError(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.sql")
	require.NoError(t, os.WriteFile(a, []byte("SELECT 1;"), 0o600))

	err := applyFiles(context.Background(), &recordingExec{fail: true}, []string{a}, zerolog.Nop())
	assert.ErrorContains(t, err, "a.sql")

	err = applyFiles(context.Background(), &recordingExec{}, []string{filepath.Join(dir, "missing.sql")}, zerolog.Nop())
	assert.Error(t, err)
}

func TestDefaultFilesExist(t *testing.T) {
	for _, f := range defaultFiles {
		_, err := os.Stat(filepath.Join("..", "..", f))
		assert.NoError(t, err, f)
	}
}
