package cfg_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cs-au-dk/symex/analysis/cfg"
	"github.com/cs-au-dk/symex/testutil"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type compilation struct{ name string }

func TestCacheConcurrent(t *testing.T) {
	cache := cfg.NewCache()
	comp := &compilation{"c1"}
	key := cfg.Key{Compilation: comp, Declaration: "f"}

	var builds int32
	build := func() (*cfg.Graph, error) {
		atomic.AddInt32(&builds, 1)
		return testutil.Chain(2), nil
	}

	var wg sync.WaitGroup
	graphs := make([]*cfg.Graph, 16)
	for i := range graphs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g, err := cache.Get(key, build)
			assert.NoError(t, err)
			graphs[i] = g
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	for _, g := range graphs {
		assert.Same(t, graphs[0], g)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCacheFailures(t *testing.T) {
	cache := cfg.NewCache()
	comp := &compilation{"c1"}

	calls := 0
	failing := func() (*cfg.Graph, error) {
		calls++
		return nil, errors.Wrap(cfg.ErrUnavailable, "unbound lambda")
	}

	for i := 0; i < 3; i++ {
		g, err := cache.Get(cfg.Key{Compilation: comp, Declaration: "lambda"}, failing)
		assert.Nil(t, g)
		assert.Equal(t, cfg.ErrUnavailable, errors.Cause(err))
	}
	assert.Equal(t, 1, calls, "failures are cached")

	g, err := cache.Get(cfg.Key{Compilation: comp, Declaration: "panics"}, func() (*cfg.Graph, error) {
		panic("malformed")
	})
	assert.Nil(t, g)
	assert.Equal(t, cfg.ErrUnavailable, errors.Cause(err))

	g, err = cache.Get(cfg.Key{Compilation: comp, Declaration: "nil"}, func() (*cfg.Graph, error) {
		return nil, nil
	})
	assert.Nil(t, g)
	assert.Equal(t, cfg.ErrUnavailable, errors.Cause(err))
}

func TestCacheInvalidate(t *testing.T) {
	cache := cfg.NewCache()
	c1, c2 := &compilation{"c1"}, &compilation{"c2"}

	builds := 0
	build := func() (*cfg.Graph, error) {
		builds++
		return testutil.Chain(1), nil
	}

	first, err := cache.Get(cfg.Key{Compilation: c1, Declaration: "f"}, build)
	require.NoError(t, err)
	_, err = cache.Get(cfg.Key{Compilation: c2, Declaration: "f"}, build)
	require.NoError(t, err)
	assert.Equal(t, 2, builds, "compilations do not share entries")

	cache.Invalidate(c1)
	assert.Equal(t, 1, cache.Len())

	second, err := cache.Get(cfg.Key{Compilation: c1, Declaration: "f"}, build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
	assert.NotSame(t, first, second)

	_, err = cache.Get(cfg.Key{Compilation: c2, Declaration: "f"}, build)
	require.NoError(t, err)
	assert.Equal(t, 3, builds)
}
