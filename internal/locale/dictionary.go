package locale

import (
	"embed"
	"fmt"
	"sort"

	"github.com/BurntSushi/toml"
)

//go:embed locales/*.toml
var localeFS embed.FS

// Dictionary is an immutable table of translated strings keyed by dotted
// namespaced keys such as "nav.home".
type Dictionary struct {
	code    Code
	entries map[string]string
}

var dictionaries = mustLoadDictionaries()

func mustLoadDictionaries() map[Code]*Dictionary {
	out := make(map[Code]*Dictionary, len(supported))
	for _, c := range supported {
		d, err := loadDictionary(c)
		if err != nil {
			panic(err)
		}
		out[c] = d
	}
	return out
}

func loadDictionary(c Code) (*Dictionary, error) {
	data, err := localeFS.ReadFile("locales/" + string(c) + ".toml")
	if err != nil {
		return nil, fmt.Errorf("locale: read %s dictionary: %w", c, err)
	}
	return parseDictionary(c, data)
}

func parseDictionary(c Code, data []byte) (*Dictionary, error) {
	var raw map[string]interface{}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("locale: parse %s dictionary: %w", c, err)
	}
	entries := make(map[string]string)
	if err := flatten("", raw, entries); err != nil {
		return nil, fmt.Errorf("locale: %s dictionary: %w", c, err)
	}
	return &Dictionary{code: c, entries: entries}, nil
}

func flatten(prefix string, in map[string]interface{}, out map[string]string) error {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case string:
			out[key] = val
		case map[string]interface{}:
			if err := flatten(key, val, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("key %q has non-string value of type %T", key, v)
		}
	}
	return nil
}

// DictionaryFor returns the dictionary for candidate, or the default
// locale's dictionary when candidate is not supported.
func DictionaryFor(candidate string) *Dictionary {
	if d, ok := dictionaries[Code(candidate)]; ok {
		return d
	}
	return dictionaries[Default]
}

// Code returns the locale this dictionary belongs to.
func (d *Dictionary) Code() Code {
	return d.code
}

// T returns the translation for key, or the key itself when it is missing.
func (d *Dictionary) T(key string) string {
	if v, ok := d.entries[key]; ok {
		return v
	}
	return key
}

// Lookup returns the translation for key and whether it exists.
func (d *Dictionary) Lookup(key string) (string, bool) {
	v, ok := d.entries[key]
	return v, ok
}

// Keys returns the sorted set of keys in the dictionary.
func (d *Dictionary) Keys() []string {
	keys := make([]string, 0, len(d.entries))
	for k := range d.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.entries)
}
