package models

import "fmt"

// BackendKind selects the response-generation backend for a bot. Exactly
// one backend runs per turn; the router switches exhaustively on this tag
// so "neither" or "both" cannot slip through as silent flag states.
type BackendKind int

const (
	BackendDefault BackendKind = iota
	BackendAlternate
)

func (k BackendKind) String() string {
	switch k {
	case BackendDefault:
		return "default"
	case BackendAlternate:
		return "alternate"
	default:
		return fmt.Sprintf("backend(%d)", int(k))
	}
}

// AlternateBackend holds the per-bot endpoint of the secondary HTTP
// response service.
type AlternateBackend struct {
	URL    string `json:"url"`
	APIKey string `json:"api_key"`
}

// BackendConfig is the tagged backend variant attached to a Bot. When
// Kind is BackendAlternate, Alternate must be non-nil.
type BackendConfig struct {
	Kind      BackendKind       `json:"kind"`
	Alternate *AlternateBackend `json:"alternate,omitempty"`
}

// Validate checks the tag and payload agree.
func (c BackendConfig) Validate() error {
	switch c.Kind {
	case BackendDefault:
		return nil
	case BackendAlternate:
		if c.Alternate == nil || c.Alternate.URL == "" {
			return fmt.Errorf("alternate backend requires an endpoint URL")
		}
		return nil
	default:
		return fmt.Errorf("unknown backend kind %d", int(c.Kind))
	}
}

// DatasetConfig links a bot to an external structured data source.
type DatasetConfig struct {
	Enabled  bool   `json:"enabled"`
	APIKey   string `json:"api_key,omitempty"` // override; falls back to the global key
	SourceID string `json:"source_id,omitempty"`
}

// Bot is a named, independently configured chat persona. Bots are
// immutable during a single message-processing cycle; only the admin
// surface mutates them.
type Bot struct {
	Name             string        `json:"name"`
	Description      string        `json:"description"`
	SystemPrompt     string        `json:"system_prompt"` // may contain a {{CONTEXT}} slot
	StarterQuestions []string      `json:"starter_questions"`
	Dataset          DatasetConfig `json:"dataset"`
	Backend          BackendConfig `json:"backend"`
}

// DatasetSource returns the bot's dataset identifier, or the given
// default when the bot does not pin one.
func (b *Bot) DatasetSource(defaultSource string) string {
	if b.Dataset.SourceID != "" {
		return b.Dataset.SourceID
	}
	return defaultSource
}

// DatasetKey returns the bot's API key override, or the given global key.
func (b *Bot) DatasetKey(globalKey string) string {
	if b.Dataset.APIKey != "" {
		return b.Dataset.APIKey
	}
	return globalKey
}
