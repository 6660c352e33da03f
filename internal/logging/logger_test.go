package logging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestGet_DisabledByDefault(t *testing.T) {
	SetRoot(nil, Options{})
	l := Get(CategoryUnify)
	require.NotNil(t, l)
	assert.False(t, IsCategoryEnabled(CategoryUnify))
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestGet_CategoryToggles(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), Options{
		DebugMode:  true,
		Categories: map[string]bool{"cache": false},
	})
	defer SetRoot(nil, Options{})

	assert.True(t, IsCategoryEnabled(CategoryUnify))
	assert.True(t, IsCategoryEnabled(CategorySchema), "unlisted categories default to enabled")
	assert.False(t, IsCategoryEnabled(CategoryCache))

	Get(CategoryUnify).Debug("enumerating", zap.Int("candidates", 3))
	Get(CategoryCache).Debug("should be dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "unify", entries[0].LoggerName)
	assert.Equal(t, int64(3), entries[0].ContextMap()["candidates"])
}

func TestInitialize(t *testing.T) {
	defer SetRoot(nil, Options{})

	require.NoError(t, Initialize(Options{DebugMode: false}))
	assert.False(t, IsCategoryEnabled(CategoryBoot))

	require.NoError(t, Initialize(Options{DebugMode: true, Level: "debug", Format: "json"}))
	assert.True(t, IsCategoryEnabled(CategoryBoot))

	err := Initialize(Options{DebugMode: true, Level: "loud"})
	assert.Error(t, err)
}

func TestTimer(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetRoot(zap.New(core), Options{DebugMode: true})
	defer SetRoot(nil, Options{})

	timer := StartTimer(CategoryRules, "scan")
	elapsed := timer.StopWithThreshold(time.Hour)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))
	require.Len(t, logs.FilterMessage("operation completed").All(), 1)

	slow := &Timer{category: CategoryRules, op: "slow", start: time.Now().Add(-time.Second)}
	slow.StopWithThreshold(time.Millisecond)
	require.Len(t, logs.FilterMessage("slow operation").All(), 1)
}
