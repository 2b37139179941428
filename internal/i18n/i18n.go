// Package i18n holds the console's translation tables and the active locale.
//
// Built-in strings are embedded TOML tables, one file per locale. Installed
// apps ship their own tables, fetched from the backend on demand and exposed
// under the "apps.<id>." key prefix.
package i18n

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"golang.org/x/text/language"
)

//go:embed locales/*.toml
var localeFS embed.FS

type Locale string

const (
	English Locale = "en"
	French  Locale = "fr"

	// DefaultLocale is used when nothing else matches.
	DefaultLocale = English
)

// ErrUnsupportedLocale is returned by SetLocale for unknown codes.
var ErrUnsupportedLocale = errors.New("unsupported locale")

// Language describes a selectable locale.
type Language struct {
	Code       Locale
	Name       string
	NativeName string
}

// Languages lists the supported locales in display order.
var Languages = []Language{
	{Code: English, Name: "English", NativeName: "English"},
	{Code: French, Name: "French", NativeName: "Français"},
}

var (
	supportedTags = []language.Tag{language.English, language.French}
	matcher       = language.NewMatcher(supportedTags)
)

// Test hook.
var getEnvVar = os.Getenv

// ParseLocale reports whether s names a supported locale.
func ParseLocale(s string) (Locale, bool) {
	l := Locale(strings.ToLower(strings.TrimSpace(s)))
	for _, lang := range Languages {
		if lang.Code == l {
			return l, true
		}
	}
	return "", false
}

// Detect picks the initial locale: the configured value when supported,
// then the POSIX locale environment, then DefaultLocale.
func Detect(configured string) Locale {
	if l, ok := ParseLocale(configured); ok {
		return l
	}
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if l, ok := fromPOSIX(getEnvVar(key)); ok {
			return l
		}
	}
	return DefaultLocale
}

// fromPOSIX matches values like "fr_FR.UTF-8" against the supported tags.
func fromPOSIX(v string) (Locale, bool) {
	if i := strings.IndexAny(v, ".@"); i >= 0 {
		v = v[:i]
	}
	v = strings.ReplaceAll(v, "_", "-")
	if v == "" || v == "C" || v == "POSIX" {
		return "", false
	}
	tag, err := language.Parse(v)
	if err != nil {
		return "", false
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return "", false
	}
	return Languages[index].Code, true
}

// Fetcher retrieves an installed app's table for a locale.
type Fetcher func(ctx context.Context, appID, locale string) (map[string]any, error)

// Store is the active locale plus all loaded tables. Safe for concurrent use.
type Store struct {
	mu     sync.Mutex
	locale Locale
	tables map[Locale]map[string]any
	apps   map[string]map[Locale]map[string]any

	persist func(Locale) error
	fetch   Fetcher
	logger  *slog.Logger

	listeners    map[int]func(Locale)
	nextListener int
}

type Option func(*Store)

// WithPersist sets the function SetLocale saves the choice with.
func WithPersist(fn func(Locale) error) Option {
	return func(s *Store) {
		s.persist = fn
	}
}

// WithFetcher sets the source of installed-app tables.
func WithFetcher(fn Fetcher) Option {
	return func(s *Store) {
		s.fetch = fn
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// New loads the embedded tables and starts in initial (DefaultLocale when
// unsupported).
func New(initial Locale, opts ...Option) (*Store, error) {
	s := &Store{
		locale:    DefaultLocale,
		tables:    make(map[Locale]map[string]any),
		apps:      make(map[string]map[Locale]map[string]any),
		logger:    slog.Default(),
		listeners: make(map[int]func(Locale)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, lang := range Languages {
		data, err := localeFS.ReadFile("locales/" + string(lang.Code) + ".toml")
		if err != nil {
			return nil, fmt.Errorf("missing table for %s: %w", lang.Code, err)
		}
		table := map[string]any{}
		if _, err := toml.Decode(string(data), &table); err != nil {
			return nil, fmt.Errorf("failed to parse table for %s: %w", lang.Code, err)
		}
		s.tables[lang.Code] = table
	}

	if l, ok := ParseLocale(string(initial)); ok {
		s.locale = l
	}
	return s, nil
}

// Locale returns the active locale.
func (s *Store) Locale() Locale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locale
}

// SetLocale switches and persists the locale.
func (s *Store) SetLocale(requested Locale) error {
	l, ok := ParseLocale(string(requested))
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnsupportedLocale, requested)
	}

	if s.persist != nil {
		if err := s.persist(l); err != nil {
			return fmt.Errorf("failed to save locale: %w", err)
		}
	}

	s.mu.Lock()
	changed := s.locale != l
	s.locale = l
	listeners := make([]func(Locale), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	if changed {
		for _, fn := range listeners {
			fn(l)
		}
	}
	return nil
}

// Subscribe calls fn after every locale change.
func (s *Store) Subscribe(fn func(Locale)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// T resolves a dotted key in the active locale. A missing key, or one that
// names a table rather than a string, returns path unchanged.
func (s *Store) T(path string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := strings.Split(path, ".")
	var root any = s.tables[s.locale]
	if len(keys) >= 3 && keys[0] == "apps" {
		root = s.apps[keys[1]][s.locale]
		keys = keys[2:]
	}
	if v, ok := lookup(root, keys).(string); ok {
		return v
	}
	return path
}

// Tf is T with {name} placeholders replaced from args.
func (s *Store) Tf(path string, args map[string]any) string {
	out := s.T(path)
	for k, v := range args {
		out = strings.ReplaceAll(out, "{"+k+"}", fmt.Sprint(v))
	}
	return out
}

// LoadApp fetches appID's table for the active locale and makes it
// available under "apps.<appID>.".
func (s *Store) LoadApp(ctx context.Context, appID string) error {
	if s.fetch == nil {
		return nil
	}
	locale := s.Locale()

	table, err := s.fetch(ctx, appID, string(locale))
	if err != nil {
		return fmt.Errorf("failed to load translations for %s: %w", appID, err)
	}

	s.mu.Lock()
	if s.apps[appID] == nil {
		s.apps[appID] = make(map[Locale]map[string]any)
	}
	s.apps[appID][locale] = table
	s.mu.Unlock()

	s.logger.Debug("loaded app translations", "app", appID, "locale", locale, "keys", len(table))
	return nil
}

// ReloadApps fetches the active locale's table for every app loaded so far
// that does not have one yet.
func (s *Store) ReloadApps(ctx context.Context) error {
	s.mu.Lock()
	locale := s.locale
	var missing []string
	for id, tables := range s.apps {
		if _, ok := tables[locale]; !ok {
			missing = append(missing, id)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, id := range missing {
		if err := s.LoadApp(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func lookup(node any, keys []string) any {
	for _, key := range keys {
		m, ok := node.(map[string]any)
		if !ok {
			return nil
		}
		if node, ok = m[key]; !ok {
			return nil
		}
	}
	return node
}
