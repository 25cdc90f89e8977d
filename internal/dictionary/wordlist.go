package dictionary

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed words.txt
var builtinWords string

// WordList is a fixed in-memory dictionary.
type WordList struct {
	words map[string]struct{}
}

// ReadWordList reads one word per line. Blank lines and lines starting with
// '#' are skipped.
func ReadWordList(r io.Reader) (*WordList, error) {
	wl := &WordList{words: map[string]struct{}{}}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		wl.words[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return wl, nil
}

func LoadWordList(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return ReadWordList(f)
}

// Builtin is the small word list shipped with the binary.
func Builtin() *WordList {
	wl, _ := ReadWordList(strings.NewReader(builtinWords))
	return wl
}

func (w *WordList) Len() int { return len(w.words) }

func (w *WordList) Lookup(_ context.Context, word string) (bool, error) {
	_, ok := w.words[word]
	return ok, nil
}
