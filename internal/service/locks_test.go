package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoanLocks_ConflictWhileHeld(t *testing.T) {
	l := newLoanLocks()
	id := uuid.New()

	release, ok := l.acquire(id)
	require.True(t, ok)

	_, ok = l.acquire(id)
	assert.False(t, ok)

	// Independent loans are unaffected.
	other, ok := l.acquire(uuid.New())
	require.True(t, ok)
	other()

	release()
	release, ok = l.acquire(id)
	assert.True(t, ok)
	release()
}

func TestLoanLocks_ReleaseEvictsEntry(t *testing.T) {
	l := newLoanLocks()
	for i := 0; i < 100; i++ {
		release, ok := l.acquire(uuid.New())
		require.True(t, ok)
		release()
	}
	assert.Empty(t, l.held)
}
