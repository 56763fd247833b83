package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type conn struct{ id int }

func TestSession_BuildsOnceAndRebuildsAfterReset(t *testing.T) {
	builds := 0
	s := NewSession(func(context.Context) (*conn, error) {
		builds++
		return &conn{id: builds}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := s.Get(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 1, c.id)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, builds)
	assert.Equal(t, uint64(1), s.Generation())

	s.Reset("nonce error")
	c, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, c.id)
	assert.Equal(t, uint64(2), s.Generation())
}

func TestSession_FailedBuildIsRetried(t *testing.T) {
	fail := true
	s := NewSession(func(context.Context) (*conn, error) {
		if fail {
			return nil, errors.New("dial")
		}
		return &conn{id: 7}, nil
	})

	_, err := s.Get(context.Background())
	require.Error(t, err)
	assert.Zero(t, s.Generation())

	fail = false
	c, err := s.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, c.id)
}

func TestSession_ResetWithoutClientIsNoop(t *testing.T) {
	s := NewSession(func(context.Context) (*conn, error) { return &conn{}, nil })
	s.Reset("nothing yet")
	assert.Zero(t, s.Generation())
}
