// Package roottesting builds byte exact ROOT files in memory and provides the
// sources and context the package tests share.
package roottesting

import (
	"testing"

	"github.com/datatrails/go-datatrails-common/logger"
	"github.com/forestrie/go-rootio/storage"
	"github.com/stretchr/testify/require"
)

type TestContext struct {
	Log logger.Logger
	T   *testing.T
}

type TestConfig struct {
	TestLabelPrefix string
	// LogLevel defaults to NOOP
	LogLevel string
}

func NewTestContext(t *testing.T, cfg TestConfig) TestContext {
	c := TestContext{
		T: t,
	}
	level := cfg.LogLevel
	if level == "" {
		level = "NOOP"
	}
	logger.New(level)
	t.Cleanup(logger.OnExit)
	c.Log = logger.Sugar.WithServiceName(cfg.TestLabelPrefix)
	return c
}

func (c *TestContext) GetLog() logger.Logger { return c.Log }

// BuildFile builds spec and fails the test on error
func (c *TestContext) BuildFile(spec FileSpec) *File {
	f, err := BuildFile(spec)
	require.NoError(c.T, err)
	return f
}

// Source builds spec and serves it from memory through a CountingSource
func (c *TestContext) Source(spec FileSpec, opts ...storage.MemoryOption) (*File, *CountingSource) {
	f := c.BuildFile(spec)
	return f, NewCountingSource(storage.NewMemorySource(f.Data, opts...))
}

// TreeKey is a key holding a tree payload built from spec
func (c *TestContext) TreeKey(spec TreeSpec) KeySpec {
	payload, err := TreePayload(spec)
	require.NoError(c.T, err)
	return KeySpec{Name: spec.Name, Title: spec.Title, ClassName: "TTree", Payload: payload}
}
