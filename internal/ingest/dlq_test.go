package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDLQEvictsOldestAtCapacity(t *testing.T) {
	q := NewDLQ(3)
	for i := 0; i < 3; i++ {
		q.Push(DeadLetter{Reading: testReading("dlq-sensor", int64(i)), RecordedAt: time.Now()})
	}
	require.Equal(t, 3, q.Len())

	q.Push(DeadLetter{Reading: testReading("dlq-sensor", 99), RecordedAt: time.Now()})
	assert.Equal(t, 3, q.Len())

	snapshot := q.Snapshot()
	assert.Equal(t, int64(1), snapshot[0].Reading.Timestamp)
	assert.Equal(t, int64(99), snapshot[2].Reading.Timestamp)
}

func TestDLQRemoveDropsReplayedEntries(t *testing.T) {
	q := NewDLQ(10)
	a := DeadLetter{Reading: testReading("a", 1)}
	b := DeadLetter{Reading: testReading("b", 2)}
	q.Push(a)
	q.Push(b)

	q.Remove([]DeadLetter{a})
	snapshot := q.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(2), snapshot[0].Reading.Timestamp)
}
