// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: Apache-2.0

package concurrent

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSPSCQueue_BasicOrdering(t *testing.T) {
	q := NewSPSCQueue[int](4)
	require.NoError(t, q.TryPush(1))
	require.NoError(t, q.TryPush(2))
	v, err := q.TryPop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	v, err = q.TryPop()
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	_, err = q.TryPop()
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSPSCQueue_FullBackpressure(t *testing.T) {
	q := NewSPSCQueue[int](2) // rounds to capacity 2
	require.NoError(t, q.TryPush(1))
	require.NoError(t, q.TryPush(2))
	assert.ErrorIs(t, q.TryPush(3), ErrFull)
}

func TestSPSCQueue_Concurrent(t *testing.T) {
	q := NewSPSCQueue[int](1024)
	const n = 20000
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			for q.TryPush(i) != nil {
			}
		}
	}()

	seen := 0
	for seen < n {
		v, err := q.TryPop()
		if err != nil {
			continue
		}
		assert.Equal(t, seen, v)
		seen++
	}
	wg.Wait()
}

func TestMPMCQueue_Basic(t *testing.T) {
	q := NewMPMCQueue[int](4)
	require.NoError(t, q.TryPush(1))
	require.NoError(t, q.TryPush(2))
	v, err := q.TryPop()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMPMCQueue_ConcurrentProducers(t *testing.T) {
	q := NewMPMCQueue[int](1024)
	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				for q.TryPush(base+i) != nil {
				}
			}
		}(p * 1000)
	}
	go func() {
		wg.Wait()
	}()

	seen := 0
	for seen < 4000 {
		if _, err := q.TryPop(); err == nil {
			seen++
		}
	}
}

func TestRCU_UpdateRetriesUnderContention(t *testing.T) {
	r := NewRCU([]int{})
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			r.Update(func(cur []int) []int {
				next := make([]int, len(cur)+1)
				copy(next, cur)
				next[len(cur)] = v
				return next
			})
		}(i)
	}
	wg.Wait()
	assert.Len(t, r.Load(), 100)
}

func TestInterner_Dedup(t *testing.T) {
	in := NewInterner()
	a := in.Intern("pkg/foo.go")
	b := in.Intern("pkg/foo.go")
	assert.Equal(t, a, b)
	assert.Equal(t, 1, in.Len())
	in.Intern("pkg/bar.go")
	assert.Equal(t, 2, in.Len())
}

func TestArena_ResetReusesBuffer(t *testing.T) {
	a := NewArena(16)
	s1 := a.AllocString("hello")
	assert.Equal(t, "hello", s1)
	a.Reset()
	assert.Equal(t, 0, a.Len())
	s2 := a.AllocString("world")
	assert.Equal(t, "world", s2)
}
