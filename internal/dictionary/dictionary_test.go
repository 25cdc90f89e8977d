package dictionary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jason-s-yu/partyroom/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "exact", r.URL.Query().Get("method"))
		switch r.URL.Query().Get("q") {
		case "하늘":
			w.Write([]byte(`{"channel":{"total":2,"item":[]}}`))
		case "없다":
			// The API answers a miss with an empty body.
		case "고장":
			w.WriteHeader(http.StatusBadGateway)
		case "깨짐":
			w.Write([]byte(`{"channel":`))
		case "느림":
			time.Sleep(200 * time.Millisecond)
		}
	}))
	defer srv.Close()

	d := NewRemote(srv.URL, "secret", 50*time.Millisecond)
	ctx := context.Background()

	ok, err := d.Lookup(ctx, "하늘")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Lookup(ctx, "없다")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, word := range []string{"고장", "깨짐", "느림"} {
		_, err := d.Lookup(ctx, word)
		assert.Error(t, err, word)
	}
}

func TestReadWordList(t *testing.T) {
	wl, err := ReadWordList(strings.NewReader("# comment\n하늘\n\n  바다  \n"))
	require.NoError(t, err)
	assert.Equal(t, 2, wl.Len())

	ok, _ := wl.Lookup(context.Background(), "바다")
	assert.True(t, ok)
	ok, _ = wl.Lookup(context.Background(), "# comment")
	assert.False(t, ok)
}

func TestBuiltinHasWords(t *testing.T) {
	wl := Builtin()
	assert.Greater(t, wl.Len(), 10)
	ok, _ := wl.Lookup(context.Background(), "하늘")
	assert.True(t, ok)
}

func TestFromConfig(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	path := filepath.Join(t.TempDir(), "words.txt")
	require.NoError(t, os.WriteFile(path, []byte("날기\n"), 0o644))

	d, err := FromConfig(&config.Config{DictionaryWords: path, DictionaryURL: "http://ignored"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &WordList{}, d)
	ok, _ := d.Lookup(context.Background(), "날기")
	assert.True(t, ok)

	d, err = FromConfig(&config.Config{DictionaryURL: "http://dict.local/search"}, logger)
	require.NoError(t, err)
	assert.IsType(t, &Remote{}, d)

	d, err = FromConfig(&config.Config{}, logger)
	require.NoError(t, err)
	assert.IsType(t, &WordList{}, d)

	_, err = FromConfig(&config.Config{DictionaryWords: filepath.Join(t.TempDir(), "missing.txt")}, logger)
	assert.Error(t, err)
}
