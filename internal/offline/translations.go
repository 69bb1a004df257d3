package offline

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Translation defaults.
const (
	DefaultLanguage  = "en"
	DefaultNamespace = "translation"
)

//go:embed translations.yaml
var defaultTranslations []byte

// Translations maps language, then namespace, to a nested string tree.
type Translations map[string]map[string]map[string]any

// DefaultTranslations returns the built-in bundle.
func DefaultTranslations() Translations {
	t, err := ParseTranslations(defaultTranslations)
	if err != nil {
		panic(fmt.Sprintf("offline: built-in translations: %v", err))
	}
	return t
}

// ParseTranslations decodes a YAML bundle.
func ParseTranslations(data []byte) (Translations, error) {
	var t Translations
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode translations: %w", err)
	}
	return t, nil
}

// LoadTranslations reads the bundle at path. When the file does not exist the
// built-in bundle is written there and returned.
func LoadTranslations(path string) (Translations, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create translations dir: %w", err)
		}
		if err := os.WriteFile(path, defaultTranslations, 0o644); err != nil {
			return nil, fmt.Errorf("write default translations: %w", err)
		}
		return DefaultTranslations(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read translations: %w", err)
	}
	return ParseTranslations(data)
}

// Translate looks up a dot-separated key. Empty language and namespace use
// the defaults. The key itself is returned when any step is missing or the
// leaf is not a string.
func (t Translations) Translate(key, language, namespace string) string {
	if language == "" {
		language = DefaultLanguage
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	current, ok := t[language][namespace]
	if !ok {
		return key
	}

	parts := strings.Split(key, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return key
		}
		current = next
	}

	if s, ok := current[parts[len(parts)-1]].(string); ok {
		return s
	}
	return key
}
