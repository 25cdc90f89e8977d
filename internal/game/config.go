package game

import "fmt"

// RoomConfig is the host-chosen configuration of a room. Only fields the
// game type understands are consulted by its machine.
type RoomConfig struct {
	GameType     GameType `json:"gameType"`
	MaxPlayers   int      `json:"maxPlayers"`
	TotalRounds  int      `json:"totalRounds"`
	RoundSeconds int      `json:"roundSeconds"`
	HostPlays    bool     `json:"hostPlays"`  // the host also takes a seat
	ScenarioID   string   `json:"scenarioId"` // murder mystery only
	StartChips   int      `json:"startChips"` // horse only
	HorseCount   int      `json:"horseCount"` // horse only
	WordCap      int      `json:"wordCap"`    // jamo only
}

// Defaults per game type, applied where the host left a field at zero.
var roomDefaults = map[GameType]RoomConfig{
	GameHorse:   {MaxPlayers: 8, TotalRounds: 5, RoundSeconds: 30, StartChips: 100, HorseCount: 5},
	GameAnimal:  {MaxPlayers: 16, TotalRounds: 5, RoundSeconds: 60},
	GameJamo:    {MaxPlayers: 8, TotalRounds: 3, RoundSeconds: 90, WordCap: 10},
	GameMystery: {MaxPlayers: 8},
}

// WithDefaults fills zero fields from the defaults of the game type.
func (c RoomConfig) WithDefaults() RoomConfig {
	d, ok := roomDefaults[c.GameType]
	if !ok {
		return c
	}
	if c.MaxPlayers == 0 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.TotalRounds == 0 {
		c.TotalRounds = d.TotalRounds
	}
	if c.RoundSeconds == 0 {
		c.RoundSeconds = d.RoundSeconds
	}
	if c.StartChips == 0 {
		c.StartChips = d.StartChips
	}
	if c.HorseCount == 0 {
		c.HorseCount = d.HorseCount
	}
	if c.WordCap == 0 {
		c.WordCap = d.WordCap
	}
	return c
}

// Validate checks the configuration after defaults have been applied.
func (c RoomConfig) Validate() error {
	if _, ok := roomDefaults[c.GameType]; !ok {
		return Errorf(ErrUnknownGameType, "unknown game type %q", c.GameType)
	}
	if c.MaxPlayers < 1 || c.MaxPlayers > 32 {
		return Errorf(ErrInvalidConfiguration, "maxPlayers must be between 1 and 32")
	}
	if c.TotalRounds < 0 || c.RoundSeconds < 0 {
		return Errorf(ErrInvalidConfiguration, "rounds and round length must be non-negative")
	}
	if c.GameType == GameMystery && c.ScenarioID == "" {
		return Errorf(ErrInvalidConfiguration, "a murder mystery room needs a scenarioId")
	}
	return nil
}

// Update applies a partial settings map sent by the host. Keys that are not
// present keep their old value; wrong types are rejected.
func (c *RoomConfig) Update(newSettings map[string]interface{}) error {
	assignInt := func(field *int, key string, minVal int) error {
		val, exists := newSettings[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64:
			n = int(v)
		case int:
			n = v
		default:
			return Errorf(ErrInvalidPayload, "invalid type for %s", key)
		}
		if n < minVal {
			return Errorf(ErrInvalidPayload, "%s must be at least %d", key, minVal)
		}
		*field = n
		return nil
	}

	updates := []struct {
		field *int
		key   string
		min   int
	}{
		{&c.MaxPlayers, "maxPlayers", 1},
		{&c.TotalRounds, "totalRounds", 1},
		{&c.RoundSeconds, "roundSeconds", 1},
		{&c.StartChips, "startChips", 1},
		{&c.HorseCount, "horseCount", 2},
		{&c.WordCap, "wordCap", 1},
	}
	for _, u := range updates {
		if err := assignInt(u.field, u.key, u.min); err != nil {
			return err
		}
	}
	return nil
}

func (c RoomConfig) String() string {
	return fmt.Sprintf("%s(max=%d rounds=%d secs=%d)", c.GameType, c.MaxPlayers, c.TotalRounds, c.RoundSeconds)
}
