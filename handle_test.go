package cairngo

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTable(t *testing.T) {
	t.Run("BoxBorrowUnbox", func(t *testing.T) {
		ht := NewHandleTable[string]()

		h := ht.Box("payload")
		assert.NotZero(t, h)
		assert.Equal(t, 1, ht.Len())

		v, err := ht.Borrow(h)
		require.NoError(t, err)
		assert.Equal(t, "payload", v)
		assert.Equal(t, 1, ht.Len(), "borrow must not consume the handle")

		v, err = ht.Unbox(h)
		require.NoError(t, err)
		assert.Equal(t, "payload", v)
		assert.Equal(t, 0, ht.Len())
	})

	t.Run("UnboxExactlyOnce", func(t *testing.T) {
		ht := NewHandleTable[int]()
		h := ht.Box(42)

		_, err := ht.Unbox(h)
		require.NoError(t, err)

		_, err = ht.Unbox(h)
		require.ErrorIs(t, err, ErrInvalidHandle)

		_, err = ht.Borrow(h)
		require.ErrorIs(t, err, ErrInvalidHandle)
	})

	t.Run("NeverIssuedHandle", func(t *testing.T) {
		ht := NewHandleTable[int]()

		_, err := ht.Borrow(Handle(7))
		require.ErrorIs(t, err, ErrInvalidHandle)
		assert.EqualError(t, err, "handle 7: invalid handle")

		_, err = ht.Borrow(Handle(0))
		require.ErrorIs(t, err, ErrInvalidHandle)
	})

	t.Run("HandlesAreDistinct", func(t *testing.T) {
		ht := NewHandleTable[int]()

		seen := make(map[Handle]bool)
		for i := 0; i < 100; i++ {
			h := ht.Box(i)
			assert.False(t, seen[h])
			seen[h] = true
		}
		assert.Equal(t, 100, ht.Len())
	})

	t.Run("NoHandleReuseAfterUnbox", func(t *testing.T) {
		ht := NewHandleTable[int]()

		h1 := ht.Box(1)
		_, err := ht.Unbox(h1)
		require.NoError(t, err)

		h2 := ht.Box(2)
		assert.NotEqual(t, h1, h2, "freed handles must not be reissued")
	})

	t.Run("ConcurrentBoxUnbox", func(t *testing.T) {
		ht := NewHandleTable[string]()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					h := ht.Box(fmt.Sprintf("%d-%d", i, j))
					v, err := ht.Borrow(h)
					assert.NoError(t, err)
					assert.Equal(t, fmt.Sprintf("%d-%d", i, j), v)
					_, err = ht.Unbox(h)
					assert.NoError(t, err)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, 0, ht.Len())
	})
}
