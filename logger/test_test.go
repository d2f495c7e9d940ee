package logger

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTestLogger(t *testing.T) {
	logger := NewTestLogger()
	assert.NotNil(t, logger)
	assert.Len(t, logger.Logs(), 0)
}

func TestTestLoggerMethods(t *testing.T) {
	logger := NewTestLogger()

	logger.Trace("Trace message", 1)
	logger.Debug("Debug message", 2)
	logger.Info("Info message", 3)
	logger.Warn("Warn message", 4)
	logger.Error("Error message", 5)

	logs := logger.Logs()
	assert.Len(t, logs, 5)

	assert.Equal(t, "TRACE", logs[0].Severity)
	assert.Equal(t, "Trace message", logs[0].Message)
	assert.Equal(t, []interface{}{1}, logs[0].Arguments)

	assert.Equal(t, "WARNING", logs[3].Severity)
	assert.Equal(t, "ERROR", logs[4].Severity)
	assert.Equal(t, 1, logger.Count("ERROR"))
}

func TestTestLoggerDerivedShareRecord(t *testing.T) {
	logger := NewTestLogger()
	child := logger.WithPrefix("[space]").With(map[string]interface{}{"key1": "value1"})

	child.Warn("set %s failed", "k")

	logs := logger.Logs()
	assert.Len(t, logs, 1)
	assert.Equal(t, "[space] set %s failed", logs[0].Message)
	assert.Equal(t, "[space] set k failed", logs[0].String())
	assert.Equal(t, "value1", logs[0].Metadata["key1"])
}

func TestTestLoggerConcurrent(t *testing.T) {
	logger := NewTestLogger()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				logger.Info("tick")
			}
		}()
	}
	wg.Wait()
	assert.Len(t, logger.Logs(), 400)
}
