package gen

import (
	"github.com/google/uuid"
)

type UUIDGenerator func() uuid.UUID

func UUID() UUIDGenerator {
	return func() uuid.UUID {
		return uuid.Must(uuid.NewRandom())
	}
}

func (g UUIDGenerator) Next() uuid.UUID {
	if g == nil {
		return uuid.New()
	}

	return g()
}

// Sequence returns a generator yielding deterministic UUIDs, for tests.
func Sequence(prefix byte) UUIDGenerator {
	var n uint64
	return func() uuid.UUID {
		n++
		var id uuid.UUID
		id[0] = prefix
		for i := 0; i < 8; i++ {
			id[15-i] = byte(n >> (8 * i))
		}
		return id
	}
}
