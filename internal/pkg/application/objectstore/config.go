package objectstore

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"

	"github.com/diwise/activitystreams/internal/pkg/infrastructure/storage"
	"github.com/diwise/activitystreams/pkg/activitystreams/vocab"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	yaml "gopkg.in/yaml.v2"
)

const (
	StorageMemory   string = storage.DriverMemory
	StoragePostgres string = storage.DriverPostgres
	StorageSQLite   string = storage.DriverSQLite
)

type VocabularyConfig struct {
	Path   string `yaml:"path"`
	Prefix string `yaml:"prefix"`
}

func (c VocabularyConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ContextConfig points out a json-ld context document that is served locally
// instead of being fetched from URL
type ContextConfig struct {
	ID   string `yaml:"id"`
	URL  string `yaml:"url"`
	Path string `yaml:"path"`
}

func (c ContextConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.URL, validation.Required),
		validation.Field(&c.Path, validation.Required),
	)
}

// ValidationRule lists properties that objects of a type must have. A final
// rule ends validation, so rules for less specific types are not applied.
type ValidationRule struct {
	Type     string   `yaml:"type"`
	Required []string `yaml:"required"`
	Final    bool     `yaml:"final"`
}

func (c ValidationRule) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Type, validation.Required),
	)
}

type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

type NotificationConfig struct {
	Endpoint string     `yaml:"endpoint"`
	NATS     NATSConfig `yaml:"nats"`
}

func (c NotificationConfig) Validate() error {
	if c.NATS.URL != "" && c.NATS.Subject == "" {
		return fmt.Errorf("notifications: a nats subject is required when a nats url is configured")
	}
	return nil
}

type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

func (c StorageConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Driver, validation.In(StorageMemory, StoragePostgres, StorageSQLite)),
		validation.Field(&c.Path, validation.When(c.Driver == StorageSQLite, validation.Required)),
	)
}

type Config struct {
	ImpliedContext string             `yaml:"impliedContext"`
	Vocabularies   []VocabularyConfig `yaml:"vocabularies"`
	Contexts       []ContextConfig    `yaml:"contexts"`
	Validation     []ValidationRule   `yaml:"validation"`
	Notifications  NotificationConfig `yaml:"notifications"`
	Storage        StorageConfig      `yaml:"storage"`
}

func LoadConfiguration(data io.Reader) (*Config, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = StorageMemory
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Vocabularies),
		validation.Field(&c.Contexts),
		validation.Field(&c.Validation),
	); err != nil {
		return err
	}

	if err := c.Notifications.Validate(); err != nil {
		return err
	}

	return c.Storage.Validate()
}

// LoadVocabularies returns the core vocabulary followed by the configured ones,
// in order. Each vocabulary may use the types of the ones before it as parents.
// The returned map resolves short ids, prefixed when a prefix is configured.
func (c *Config) LoadVocabularies(fsys fs.FS) ([]*vocab.Vocabulary, map[string]string, error) {
	core, err := vocab.Core()
	if err != nil {
		return nil, nil, err
	}

	vocabs := []*vocab.Vocabulary{core}
	shortIDs := []map[string]string{vocab.ShortIDs(core, "")}

	for _, vc := range c.Vocabularies {
		v, err := loadVocabulary(fsys, vc.Path, vocabs)
		if err != nil {
			return nil, nil, err
		}

		vocabs = append(vocabs, v)
		shortIDs = append(shortIDs, vocab.ShortIDs(v, vc.Prefix))
	}

	return vocabs, vocab.Merge(shortIDs...), nil
}

func loadVocabulary(fsys fs.FS, path string, bases []*vocab.Vocabulary) (*vocab.Vocabulary, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open vocabulary %s: %w", path, err)
	}
	defer f.Close()

	v, err := vocab.LoadDefinition(f, bases...)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary %s: %w", path, err)
	}

	return v, nil
}

// LoadContexts reads the locally served context documents, keyed by their URL
func (c *Config) LoadContexts(fsys fs.FS) (map[string]any, error) {
	documents := make(map[string]any, len(c.Contexts))

	for _, cc := range c.Contexts {
		buf, err := fs.ReadFile(fsys, cc.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read context %s: %w", cc.ID, err)
		}

		var document any
		if err := json.Unmarshal(buf, &document); err != nil {
			return nil, fmt.Errorf("context %s is not valid json: %w", cc.ID, err)
		}

		documents[cc.URL] = document
	}

	return documents, nil
}

// ContextURL maps a local context id to the URL it is known by
func (c *Config) ContextURL(contextID string) (string, bool) {
	for _, cc := range c.Contexts {
		if cc.ID == contextID {
			return cc.URL, true
		}
	}
	return "", false
}
