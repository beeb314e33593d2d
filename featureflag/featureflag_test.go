package featureflag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFeatureFlag(t *testing.T) {
	f := New([]string{string(FlagDisableLineTraces)})

	t.Run("is set", func(t *testing.T) {
		require.True(t, f.IsSet(FlagDisableLineTraces))
		require.False(t, f.IsSet(FlagUncachedQueries))
	})

	t.Run("run if enabled", func(t *testing.T) {
		var runDisableTraces bool
		f.IfSet(FlagDisableLineTraces, func() {
			runDisableTraces = true
		})
		require.True(t, runDisableTraces)

		var runUncached bool
		f.IfSet(FlagUncachedQueries, func() {
			runUncached = true
		})
		require.False(t, runUncached)
	})

	t.Run("run if disabled", func(t *testing.T) {
		var runDisableTraces bool
		f.IfNotSet(FlagDisableLineTraces, func() {
			runDisableTraces = true
		})
		require.False(t, runDisableTraces)

		var runUncached bool
		f.IfNotSet(FlagUncachedQueries, func() {
			runUncached = true
		})
		require.True(t, runUncached)
	})
}
