package dictionary

import (
	"github.com/jason-s-yu/partyroom/internal/config"
	"github.com/jason-s-yu/partyroom/internal/game/jamo"
	"github.com/sirupsen/logrus"
)

// FromConfig picks the dictionary source: a word list file wins over the
// remote API, and the builtin list is the fallback when neither is set.
func FromConfig(cfg *config.Config, logger *logrus.Logger) (jamo.Dictionary, error) {
	switch {
	case cfg.DictionaryWords != "":
		wl, err := LoadWordList(cfg.DictionaryWords)
		if err != nil {
			return nil, err
		}
		logger.WithField("words", wl.Len()).Info("using word list dictionary")
		return wl, nil
	case cfg.DictionaryURL != "":
		logger.WithField("url", cfg.DictionaryURL).Info("using remote dictionary")
		return NewRemote(cfg.DictionaryURL, cfg.DictionaryKey, cfg.DictionaryTimeout), nil
	default:
		wl := Builtin()
		logger.WithField("words", wl.Len()).Warn("no dictionary configured, using builtin word list")
		return wl, nil
	}
}
