package cmd

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/gosti/internal/database"
)

const hierarchyYAML = `hierarchy:
  discriminator: cast_type
  primary_key: id
  types:
    - name: fleet.Vehicle
      methods: [describe]
      casts:
        wheels: int
    - name: fleet.Car
      parent: fleet.Vehicle
      overrides: [describe]
      casts:
        seats: int
    - name: fleet.Truck
      parent: fleet.Vehicle

logging:
  level: error
  output: stderr
`

const connectionsYAML = `connections:
  default:
    host: 127.0.0.1
    port: 3306
    user: root
    password: test
    database: fleet
`

// writeConfig writes content to a temp file and points the config flag at
// it for the duration of the test.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gosti.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	original := cfgFile
	cfgFile = path
	t.Cleanup(func() { cfgFile = original })
	return path
}

// useMockDB routes every connection the commands open to a sqlmock handle.
func useMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	original := dbOptions
	dbOptions = []database.Option{
		database.WithOpener(func(driverName, dsn string) (*sql.DB, error) {
			return db, nil
		}),
		database.WithRetry(1, 0),
	}
	t.Cleanup(func() {
		dbOptions = original
		_ = db.Close()
	})
	return mock
}

func TestExecute(t *testing.T) {
	// Execute calls os.Exit(1) on error, so only its presence is checked.
	assert.NotNil(t, Execute)
}

func TestVersionVariables(t *testing.T) {
	assert.NotEmpty(t, Version, "Version should not be empty")
	assert.NotEmpty(t, Commit, "Commit should not be empty")
}

func TestCLIFlagsVariables(t *testing.T) {
	assert.Equal(t, "gosti.yaml", cfgFile, "cfgFile should default to gosti.yaml")
	assert.Equal(t, "", logLevel)
	assert.Equal(t, "", logFormat)
	assert.Equal(t, "", connection)
	assert.Equal(t, false, strict)
}

func TestCommandVariables(t *testing.T) {
	assert.Equal(t, "", scanType, "scanType should default to empty")
	assert.Equal(t, 0, scanLimit)
	assert.False(t, scanUnscoped)
	assert.False(t, listTypesYAML)
}

func TestLoadEnvironment(t *testing.T) {
	writeConfig(t, hierarchyYAML)

	env, err := loadEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "fleet.Vehicle", env.resolver.Registry().Root())
	assert.Equal(t, "cast_type", env.resolver.Key())
	assert.Equal(t, 3, env.tree.NodeCount())
	assert.Equal(t, "fallback", env.resolver.Policy().String())
}

func TestLoadEnvironment_StrictOverride(t *testing.T) {
	writeConfig(t, hierarchyYAML)

	original := strict
	strict = true
	defer func() { strict = original }()

	env, err := loadEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "strict", env.resolver.Policy().String())
	assert.True(t, env.cfg.Hierarchy.Strict())
}

func TestLoadEnvironment_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "no types",
			content: "hierarchy:\n  discriminator: cast_type\n",
			wantErr: "at least one type",
		},
		{
			name: "two roots",
			content: `hierarchy:
  types:
    - name: A
    - name: B
`,
			wantErr: "more than one root",
		},
		{
			name: "unknown default connection",
			content: connectionsYAML + `default_connection: replica
` + hierarchyYAML,
			wantErr: "default_connection",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writeConfig(t, tt.content)
			_, err := loadEnvironment()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvironment_MissingFile(t *testing.T) {
	original := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "missing.yaml")
	defer func() { cfgFile = original }()

	_, err := loadEnvironment()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load config")
}
