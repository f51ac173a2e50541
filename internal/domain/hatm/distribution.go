// internal/domain/hatm/distribution.go
package hatm

import (
	"fmt"
	"math/rand"
)

// TotalJuz is the number of sections a hatm is split into.
const TotalJuz = 30

// MaxParticipants bounds the target slot count; with 30 indivisible juzs
// there is no point in more slots than juzs.
const MaxParticipants = TotalJuz

// ShuffleFunc permutes n elements via swap, with the same contract as
// rand.Shuffle. Tests pass a deterministic implementation.
type ShuffleFunc func(n int, swap func(i, j int))

// SlotSize returns how many juzs the slot at slotIndex (0-based, in arrival
// order) receives for the given target participant count. The first
// TotalJuz%targetCount slots carry one extra juz, so per-slot counts differ
// by at most 1 and sum to TotalJuz.
func SlotSize(targetCount, slotIndex int) int {
	size := TotalJuz / targetCount
	if slotIndex < TotalJuz%targetCount {
		size++
	}
	return size
}

// NewPartition splits the juz numbers 1..TotalJuz into targetCount slots
// sized by SlotSize. The numbers are shuffled before slicing, so which
// physical juzs land in which slot is random; slot order itself is not
// randomized (it follows arrival order). A nil shuffle uses rand.Shuffle.
func NewPartition(targetCount int, shuffle ShuffleFunc) ([][]int, error) {
	if targetCount < 1 || targetCount > MaxParticipants {
		return nil, fmt.Errorf("target participant count %d out of range [1,%d]", targetCount, MaxParticipants)
	}
	if shuffle == nil {
		shuffle = rand.Shuffle
	}

	numbers := make([]int, TotalJuz)
	for i := range numbers {
		numbers[i] = i + 1
	}
	shuffle(len(numbers), func(i, j int) {
		numbers[i], numbers[j] = numbers[j], numbers[i]
	})

	slots := make([][]int, targetCount)
	offset := 0
	for i := range slots {
		size := SlotSize(targetCount, i)
		slots[i] = numbers[offset : offset+size]
		offset += size
	}
	return slots, nil
}
