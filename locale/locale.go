// Package locale renders user-facing strings from embedded translation
// tables. Consumers pass a language tag and a key; unknown tags and keys fall
// back to English so the bot never renders an empty message.
package locale

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"strings"

	log "github.com/sirupsen/logrus"
)

//go:embed locales/*.json
var localesFS embed.FS

// DefaultTag is the fallback language
const DefaultTag = "en"

// Provider resolves language tags to translation tables
type Provider struct {
	tables map[string]map[string]string
}

// NewProvider loads all embedded locale tables
func NewProvider() (*Provider, error) {
	p := &Provider{tables: make(map[string]map[string]string)}

	entries, err := fs.ReadDir(localesFS, "locales")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded locales: %w", err)
	}

	for _, entry := range entries {
		tag := strings.TrimSuffix(entry.Name(), ".json")
		data, err := localesFS.ReadFile("locales/" + entry.Name())
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", tag, err)
		}

		table := make(map[string]string)
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("failed to parse locale %s: %w", tag, err)
		}
		p.tables[tag] = table
	}

	if _, ok := p.tables[DefaultTag]; !ok {
		return nil, fmt.Errorf("default locale %q is missing", DefaultTag)
	}

	log.WithField("locales", len(p.tables)).Debug("Locale tables loaded")
	return p, nil
}

// Tags returns the loaded language tags
func (p *Provider) Tags() []string {
	tags := make([]string, 0, len(p.tables))
	for tag := range p.tables {
		tags = append(tags, tag)
	}
	return tags
}

// Get renders the string for a key in the given language. Tags are matched on
// their primary subtag ("en-US" resolves to "en"); missing tags and keys fall
// back to the default table, and an unknown key renders as the key itself.
func (p *Provider) Get(tag, key string, args ...any) string {
	table, ok := p.tables[normalize(tag)]
	if !ok {
		table = p.tables[DefaultTag]
	}

	format, ok := table[key]
	if !ok {
		format, ok = p.tables[DefaultTag][key]
	}
	if !ok {
		log.WithFields(log.Fields{"tag": tag, "key": key}).Warn("Missing locale key")
		return key
	}

	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}

func normalize(tag string) string {
	tag = strings.ToLower(tag)
	if i := strings.IndexAny(tag, "-_"); i > 0 {
		tag = tag[:i]
	}
	return tag
}
