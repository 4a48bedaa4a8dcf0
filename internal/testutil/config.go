package testutil

import (
	"testing"

	"github.com/spf13/viper"
)

// ResetConfig resets viper now and again when the test completes.
func ResetConfig(t *testing.T) {
	t.Helper()

	viper.Reset()
	t.Cleanup(viper.Reset)
}

// SetViperValue sets a viper configuration value and restores the previous
// value when the test completes.
func SetViperValue(t *testing.T, key string, value any) {
	t.Helper()

	oldValue := viper.Get(key)
	hadValue := viper.IsSet(key)

	viper.Set(key, value)

	t.Cleanup(func() {
		// viper has no Unset, so an absent key is restored as nil.
		if hadValue {
			viper.Set(key, oldValue)
		} else {
			viper.Set(key, nil)
		}
	})
}

// SetupDatastore points the datastore at a database file inside env and
// returns its path.
func SetupDatastore(t *testing.T, env *TestEnv) string {
	t.Helper()

	dbPath := env.Path("bookmeta.db")
	SetViperValue(t, "datastore.enabled", true)
	SetViperValue(t, "datastore.dbfile", dbPath)

	return dbPath
}
