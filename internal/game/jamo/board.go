package jamo

import (
	"math/rand"

	"github.com/jason-s-yu/partyroom/internal/game"
)

// BoardSize is the number of numbered tiles on a board.
const BoardSize = 24

// BasicJamo is the fixed tile pool: 14 consonants followed by 10 vowels.
var BasicJamo = []rune("ㄱㄴㄷㄹㅁㅂㅅㅇㅈㅊㅋㅌㅍㅎㅏㅑㅓㅕㅗㅛㅜㅠㅡㅣ")

// Board maps positions 1..24 to a permutation of BasicJamo. Index 0 holds
// position 1.
type Board [BoardSize]rune

// NewBoard shuffles the tile pool onto a fresh board.
func NewBoard(rng *rand.Rand) Board {
	var b Board
	for i, p := range rng.Perm(BoardSize) {
		b[i] = BasicJamo[p]
	}
	return b
}

// At returns the tile at a 1-based position.
func (b Board) At(pos int) (rune, bool) {
	if pos < 1 || pos > BoardSize {
		return 0, false
	}
	return b[pos-1], true
}

// Tiles resolves a submission to its jamo. Positions must be on the board and
// distinct.
func (b Board) Tiles(numbers []int) ([]rune, error) {
	if len(numbers) == 0 {
		return nil, game.Errorf(game.ErrInvalidPayload, "numbers must not be empty")
	}
	seen := make(map[int]bool, len(numbers))
	out := make([]rune, 0, len(numbers))
	for _, n := range numbers {
		r, ok := b.At(n)
		if !ok {
			return nil, game.Errorf(game.ErrInvalidTarget, "position %d is not on the board", n)
		}
		if seen[n] {
			return nil, game.Errorf(game.ErrInvalidPayload, "position %d is used twice", n)
		}
		seen[n] = true
		out = append(out, r)
	}
	return out, nil
}

// Strings renders the board for snapshots, keyed by position.
func (b Board) Strings() map[int]string {
	out := make(map[int]string, BoardSize)
	for i, r := range b {
		if r != 0 {
			out[i+1] = string(r)
		}
	}
	return out
}
