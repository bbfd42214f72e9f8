package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	viper.Set("config", path)
	defer viper.Set("config", "")

	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	saved := Config{
		Server:         "https://openshift.example.com:8443",
		Token:          "sha256~abc",
		TokenExpiresAt: &expires,
		Username:       "developer",
		Namespace:      "staging",
		APIVersion:     "v1beta3",
	}
	require.NoError(t, saveConfig(saved))

	loaded := loadConfig()
	assert.Equal(t, saved.Server, loaded.Server)
	assert.Equal(t, saved.Token, loaded.Token)
	assert.Equal(t, saved.Username, loaded.Username)
	assert.Equal(t, saved.Namespace, loaded.Namespace)
	assert.Equal(t, saved.APIVersion, loaded.APIVersion)
	require.NotNil(t, loaded.TokenExpiresAt)
	assert.True(t, expires.Equal(*loaded.TokenExpiresAt))
}

func TestLoadConfigMissingFile(t *testing.T) {
	viper.Set("config", filepath.Join(t.TempDir(), "nope.yml"))
	defer viper.Set("config", "")

	config := loadConfig()
	assert.Empty(t, config.Server)
	assert.Empty(t, config.Token)
}

func TestConfigPersisterSaveToken(t *testing.T) {
	viper.Set("config", filepath.Join(t.TempDir(), "config.yml"))
	defer viper.Set("config", "")

	persister := NewConfigPersister()
	expires := time.Now().Add(time.Hour)
	require.NoError(t, persister.SaveToken("https://api.example.com", "sha256~new", expires))

	config := loadConfig()
	assert.Equal(t, "https://api.example.com", config.Server)
	assert.Equal(t, "sha256~new", config.Token)
	require.NotNil(t, config.TokenExpiresAt)

	// A token for some other endpoint never overwrites the stored one.
	require.NoError(t, persister.SaveToken("https://other.example.com", "sha256~other", expires))

	config = loadConfig()
	assert.Equal(t, "sha256~new", config.Token)
}

func TestApplyConfigKey(t *testing.T) {
	t.Run("known keys", func(t *testing.T) {
		var config Config

		require.NoError(t, applyConfigKey(&config, "server", "https://api.example.com"))
		require.NoError(t, applyConfigKey(&config, "namespace", "dev"))
		require.NoError(t, applyConfigKey(&config, "api_version", "v1beta3"))
		require.NoError(t, applyConfigKey(&config, "output", "json"))

		assert.Equal(t, "https://api.example.com", config.Server)
		assert.Equal(t, "dev", config.Namespace)
		assert.Equal(t, "v1beta3", config.APIVersion)
		assert.Equal(t, "json", config.Output)
	})

	t.Run("invalid api version", func(t *testing.T) {
		var config Config

		err := applyConfigKey(&config, "api_version", "v9")
		require.Error(t, err)

		var versionErr *okapi.VersionError
		assert.ErrorAs(t, err, &versionErr)
	})

	t.Run("unknown key", func(t *testing.T) {
		var config Config

		err := applyConfigKey(&config, "color", "never")
		require.Error(t, err)
	})

	t.Run("unset clears value", func(t *testing.T) {
		config := Config{Namespace: "dev"}

		require.NoError(t, applyConfigKey(&config, "namespace", ""))
		assert.Empty(t, config.Namespace)
	})
}

func TestObjectRow(t *testing.T) {
	created := time.Now().Add(-2 * time.Hour)
	obj := okapi.Object{
		Metadata: okapi.ObjectMeta{
			Name:              "frontend",
			Namespace:         "web",
			ResourceVersion:   "1042",
			CreationTimestamp: &created,
		},
	}

	row := objectRow(obj)
	require.Len(t, row, 4)
	assert.Equal(t, "frontend", row[0])
	assert.Equal(t, "web", row[1])
	assert.Equal(t, "1042", row[2])
	assert.Equal(t, "2h", row[3])

	// Cluster-scoped objects render placeholders.
	bare := objectRow(okapi.Object{Metadata: okapi.ObjectMeta{Name: "node-1"}})
	assert.Equal(t, []any{"node-1", "-", "-", "-"}, bare)
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "-", formatAge(nil))

	recent := time.Now().Add(-30 * time.Second)
	assert.Equal(t, "30s", formatAge(&recent))

	minutes := time.Now().Add(-5 * time.Minute)
	assert.Equal(t, "5m", formatAge(&minutes))

	hours := time.Now().Add(-3 * time.Hour)
	assert.Equal(t, "3h", formatAge(&hours))

	days := time.Now().Add(-49 * time.Hour)
	assert.Equal(t, "2d", formatAge(&days))
}

func TestRequestOptions(t *testing.T) {
	opts := requestOptions("env=prod", "status.phase=Running", true, 25)
	assert.True(t, opts.AllNamespaces)

	values := opts.Params.ToValues()
	assert.Equal(t, "env=prod", values.Get("labelSelector"))
	assert.Equal(t, "status.phase=Running", values.Get("fieldSelector"))
	assert.Equal(t, "25", values.Get("limit"))

	empty := requestOptions("", "", false, 0)
	assert.Empty(t, empty.Params.ToValues())
}
