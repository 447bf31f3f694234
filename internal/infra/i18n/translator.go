package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// catalog is the on-disk shape of locales/<lang>.yaml.
type catalog struct {
	Messages map[string]string   `yaml:"messages"`
	Pools    map[string][]string `yaml:"pools"`
}

// Translator resolves message keys and phrase pools for one language.
type Translator struct {
	translations map[string]string
	pools        map[string][]string
}

// NewTranslator reads locales/<langCode>.yaml from fsys.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := path.Join("locales", fmt.Sprintf("%s.yaml", langCode))
	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}
	return newTranslatorFromBytes(data)
}

func newTranslatorFromBytes(data []byte) (*Translator, error) {
	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}
	if c.Messages == nil {
		c.Messages = map[string]string{}
	}
	return &Translator{translations: c.Messages, pools: c.Pools}, nil
}

// T returns the message for key formatted with args, or the key itself when missing.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}

// Pool returns the phrase list for key. Callers must not modify it.
func (t *Translator) Pool(key string) []string {
	return t.pools[key]
}
