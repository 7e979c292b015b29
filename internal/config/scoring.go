package config

import (
	"context"
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/okian/exposurerisk/internal/domain/scoring"
)

// LoadScoring reads a YAML scoring configuration document from path and
// validates it. An empty path yields the built-in configuration.
func LoadScoring(ctx context.Context, path string) (*scoring.Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if path == "" {
		return scoring.Default(), nil
	}
	return loadScoring(file.Provider(path), path)
}

func loadScoring(p koanf.Provider, path string) (*scoring.Configuration, error) {
	k := koanf.New(".")
	if err := k.Load(p, yaml.Parser()); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadScoring, path, err)
	}

	var doc scoring.ConfigurationDocument
	if err := k.UnmarshalWithConf("", &doc, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadScoring, path, err)
	}

	cfg, err := scoring.NewConfiguration(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoadScoring, path, err)
	}
	return cfg, nil
}

// ScoringWatcher reloads a scoring configuration file whenever it changes.
type ScoringWatcher struct {
	path     string
	provider *file.File
}

// WatchScoring starts watching path. onChange receives every reloaded
// configuration, or the error that prevented it; a rejected file never
// replaces the caller's current configuration. The watch ends when ctx is
// done or Close is called.
func WatchScoring(ctx context.Context, path string, onChange func(*scoring.Configuration, error)) (*ScoringWatcher, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no scoring configuration path to watch", ErrInvalidConfig)
	}
	w := &ScoringWatcher{path: path, provider: file.Provider(path)}

	err := w.provider.Watch(func(_ interface{}, err error) {
		if err != nil {
			onChange(nil, fmt.Errorf("%w: %s: %w", ErrWatchScoring, path, err))
			return
		}
		onChange(loadScoring(w.provider, path))
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrWatchScoring, path, err)
	}

	go func() {
		<-ctx.Done()
		_ = w.Close()
	}()
	return w, nil
}

// Close stops the watch.
func (w *ScoringWatcher) Close() error {
	return w.provider.Unwatch()
}
