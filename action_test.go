package ingest

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPathActionResolvesOnce(t *testing.T) {
	var calls int32
	resolver := func(path string) (ActionFunc, error) {
		atomic.AddInt32(&calls, 1)
		return func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
			res.SetHTML(path)
			return true, nil
		}, nil
	}

	action := EntryPathAction("handlers/greet", resolver)

	fn1, err := action.resolve()
	require.NoError(t, err)
	fn2, err := action.resolve()
	require.NoError(t, err)

	res := NewResponse()
	_, _ = fn1(NewRequest(), res, nil)
	assert.Equal(t, "handlers/greet", res.Body)

	_ = fn2
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEntryPathActionWithoutResolverErrors(t *testing.T) {
	action := EntryPathAction("handlers/greet", nil)
	_, err := action.resolve()
	assert.Error(t, err)
}

func TestImportThunkActionResolvesOnce(t *testing.T) {
	var calls int32
	action := ImportThunkAction(func() (ActionFunc, error) {
		atomic.AddInt32(&calls, 1)
		return func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
			return true, nil
		}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := action.resolve()
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestImportThunkActionErrorIsMemoized(t *testing.T) {
	var calls int32
	action := ImportThunkAction(func() (ActionFunc, error) {
		atomic.AddInt32(&calls, 1)
		return nil, fmt.Errorf("load failed")
	})

	_, err1 := action.resolve()
	_, err2 := action.resolve()

	require.Error(t, err1)
	require.Error(t, err2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCallableActionNeverDefers(t *testing.T) {
	called := false
	action := CallableAction(func(req *Request, res *Response, ctx *PluginHost) (bool, error) {
		called = true
		return true, nil
	})

	fn, err := action.resolve()
	require.NoError(t, err)
	assert.False(t, called)

	_, _ = fn(NewRequest(), NewResponse(), nil)
	assert.True(t, called)
}
