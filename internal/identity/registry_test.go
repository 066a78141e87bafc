package identity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAssignsSequentialNumbers(t *testing.T) {
	r := NewRegistry()

	n1, isNew := r.RegisterOrRefresh("abc", "conn-1")
	assert.Equal(t, 1, n1)
	assert.True(t, isNew)

	n2, isNew := r.RegisterOrRefresh("def", "conn-2")
	assert.Equal(t, 2, n2)
	assert.True(t, isNew)

	assert.Equal(t, []int{1, 2}, r.ListOnline())
}

func TestRefreshKeepsNumber(t *testing.T) {
	r := NewRegistry()

	n, _ := r.RegisterOrRefresh("abc", "conn-1")

	for i := range 5 {
		again, isNew := r.RegisterOrRefresh("abc", "conn-x")
		assert.Equal(t, n, again, "iteration %d", i)
		assert.False(t, isNew)
	}
}

func TestReRegisterSupersedesOldConnection(t *testing.T) {
	r := NewRegistry()

	r.RegisterOrRefresh("abc", "conn-1")
	r.RegisterOrRefresh("abc", "conn-2")

	// disconnect of the stale connection must not take the identity offline
	_, ok := r.MarkOffline("conn-1")
	assert.False(t, ok)
	assert.Equal(t, []int{1}, r.ListOnline())

	id, ok := r.Lookup("conn-2")
	require.True(t, ok)
	assert.Equal(t, 1, id.Number)
}

func TestConnectionReusedByAnotherToken(t *testing.T) {
	r := NewRegistry()

	r.RegisterOrRefresh("abc", "conn-1")
	r.RegisterOrRefresh("def", "conn-1")

	assert.Equal(t, []int{2}, r.ListOnline())

	id, ok := r.Lookup("conn-1")
	require.True(t, ok)
	assert.Equal(t, "def", id.Token)
}

func TestMarkOffline(t *testing.T) {
	r := NewRegistry()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return base }

	r.RegisterOrRefresh("abc", "conn-1")

	base = base.Add(time.Minute)
	id, ok := r.MarkOffline("conn-1")
	require.True(t, ok)
	assert.Equal(t, 1, id.Number)
	assert.False(t, id.Online())
	assert.Equal(t, base, id.LastSeen)
	assert.Empty(t, r.ListOnline())

	// duplicate disconnect
	_, ok = r.MarkOffline("conn-1")
	assert.False(t, ok)

	// identity is retained while offline
	assert.Equal(t, 1, r.Len())
}

func TestEvictIfStillOffline(t *testing.T) {
	r := NewRegistry()

	r.RegisterOrRefresh("abc", "conn-1")
	r.MarkOffline("conn-1")

	assert.True(t, r.EvictIfStillOffline(1))
	assert.Equal(t, 0, r.Len())

	// already evicted
	assert.False(t, r.EvictIfStillOffline(1))

	// a later registration with the same token gets a new number
	n, isNew := r.RegisterOrRefresh("abc", "conn-2")
	assert.Equal(t, 2, n)
	assert.True(t, isNew)
}

func TestEvictSkipsReconnectedIdentity(t *testing.T) {
	r := NewRegistry()

	r.RegisterOrRefresh("abc", "conn-1")
	r.MarkOffline("conn-1")
	r.RegisterOrRefresh("abc", "conn-2")

	assert.False(t, r.EvictIfStillOffline(1))

	id, ok := r.Lookup("conn-2")
	require.True(t, ok)
	assert.Equal(t, 1, id.Number)
	assert.True(t, id.Online())
}

func TestEvictUnknownNumber(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.EvictIfStillOffline(42))
}

func TestNumbersNeverReused(t *testing.T) {
	r := NewRegistry()
	seen := make(map[int]bool)

	for i := range 20 {
		token := string(rune('a' + i))
		conn := "conn-" + token

		n, isNew := r.RegisterOrRefresh(token, conn)
		require.True(t, isNew)
		require.False(t, seen[n], "number %d reused", n)
		seen[n] = true

		if i%2 == 0 {
			r.MarkOffline(conn)
			r.EvictIfStillOffline(n)
		}
	}
}

func TestListOnlineIsSorted(t *testing.T) {
	r := NewRegistry()

	for _, token := range []string{"a", "b", "c", "d", "e"} {
		r.RegisterOrRefresh(token, "conn-"+token)
	}

	r.MarkOffline("conn-c")

	assert.Equal(t, []int{1, 2, 4, 5}, r.ListOnline())
}
