package jamo

import (
	"errors"
	"strings"
)

var (
	errNoInitial = errors.New("a syllable must start with a consonant")
	errNoVowel   = errors.New("a syllable needs a vowel after its consonant")
	errEmpty     = errors.New("no letters submitted")
	errBadFinal  = errors.New("that consonant cannot close a syllable")
)

// Index tables of the precomposed syllable block, in Unicode order.
var (
	initials = []rune("ㄱㄲㄴㄷㄸㄹㅁㅂㅃㅅㅆㅇㅈㅉㅊㅋㅌㅍㅎ")
	medials  = []rune("ㅏㅐㅑㅒㅓㅔㅕㅖㅗㅘㅙㅚㅛㅜㅝㅞㅟㅠㅡㅢㅣ")
	finals   = append([]rune{0}, []rune("ㄱㄲㄳㄴㄵㄶㄷㄹㄺㄻㄼㄽㄾㄿㅀㅁㅂㅄㅅㅆㅇㅈㅊㅋㅌㅍㅎ")...)
)

const syllableBase = 0xAC00

type pair [2]rune

// compoundVowels joins two vowel tiles. Triples are built in two steps
// (ㅗ+ㅏ+ㅣ is ㅘ+ㅣ).
var compoundVowels = map[pair]rune{
	{'ㅏ', 'ㅣ'}: 'ㅐ',
	{'ㅑ', 'ㅣ'}: 'ㅒ',
	{'ㅓ', 'ㅣ'}: 'ㅔ',
	{'ㅕ', 'ㅣ'}: 'ㅖ',
	{'ㅗ', 'ㅏ'}: 'ㅘ',
	{'ㅗ', 'ㅐ'}: 'ㅙ',
	{'ㅘ', 'ㅣ'}: 'ㅙ',
	{'ㅗ', 'ㅣ'}: 'ㅚ',
	{'ㅜ', 'ㅓ'}: 'ㅝ',
	{'ㅜ', 'ㅔ'}: 'ㅞ',
	{'ㅝ', 'ㅣ'}: 'ㅞ',
	{'ㅜ', 'ㅣ'}: 'ㅟ',
	{'ㅡ', 'ㅣ'}: 'ㅢ',
}

var compoundFinals = map[pair]rune{
	{'ㄱ', 'ㅅ'}: 'ㄳ',
	{'ㄴ', 'ㅈ'}: 'ㄵ',
	{'ㄴ', 'ㅎ'}: 'ㄶ',
	{'ㄹ', 'ㄱ'}: 'ㄺ',
	{'ㄹ', 'ㅁ'}: 'ㄻ',
	{'ㄹ', 'ㅂ'}: 'ㄼ',
	{'ㄹ', 'ㅅ'}: 'ㄽ',
	{'ㄹ', 'ㅌ'}: 'ㄾ',
	{'ㄹ', 'ㅍ'}: 'ㄿ',
	{'ㄹ', 'ㅎ'}: 'ㅀ',
	{'ㅂ', 'ㅅ'}: 'ㅄ',
}

func indexOf(table []rune, r rune) int {
	for i, t := range table {
		if t == r && r != 0 {
			return i
		}
	}
	return -1
}

func isVowel(r rune) bool     { return indexOf(medials, r) >= 0 }
func isConsonant(r rune) bool { return indexOf(initials, r) >= 0 }

// Compose assembles a sequence of jamo into Hangul syllables. Every syllable
// is initial consonant, vowel (possibly compound) and an optional final
// (possibly compound). A consonant directly followed by a vowel always opens
// the next syllable.
func Compose(seq []rune) (string, error) {
	if len(seq) == 0 {
		return "", errEmpty
	}
	var b strings.Builder
	n := len(seq)
	opensSyllable := func(i int) bool { return i+1 < n && isVowel(seq[i+1]) }

	for i := 0; i < n; {
		if !isConsonant(seq[i]) {
			return "", errNoInitial
		}
		cho := indexOf(initials, seq[i])
		i++
		if i >= n || !isVowel(seq[i]) {
			return "", errNoVowel
		}
		vowel := seq[i]
		i++
		for i < n {
			joined, ok := compoundVowels[pair{vowel, seq[i]}]
			if !ok {
				break
			}
			vowel = joined
			i++
		}

		final := rune(0)
		if i < n && isConsonant(seq[i]) && !opensSyllable(i) {
			final = seq[i]
			i++
			if i < n && isConsonant(seq[i]) && !opensSyllable(i) {
				if joined, ok := compoundFinals[pair{final, seq[i]}]; ok {
					final = joined
					i++
				}
			}
		}

		jong := 0
		if final != 0 {
			if jong = indexOf(finals, final); jong < 0 {
				return "", errBadFinal
			}
		}
		b.WriteRune(rune(syllableBase + (cho*len(medials)+indexOf(medials, vowel))*len(finals) + jong))
	}
	return b.String(), nil
}
