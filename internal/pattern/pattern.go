// Package pattern holds the table of merchant detection rules used to
// recognise subscription charges in free-form statement text.  The table is
// immutable for the lifetime of the process.
package pattern

import "regexp"

// Pattern is a single merchant detection rule.  The matching rule is a
// regular expression evaluated against a lower-cased statement line.
// DefaultCost is a fallback monthly cost used only when no price can be
// extracted from the line itself; it is zero for most services ("unknown
// cost, confirmed presence").
type Pattern struct {
	Name        string
	Category    string
	DefaultCost float64
	Logo        string

	re *regexp.Regexp
}

// Matches reports whether line matches this pattern.  Callers are expected
// to pass the lower-cased form of the line.
func (p *Pattern) Matches(line string) bool {
	return p.re.MatchString(line)
}

// Registry is an immutable set of patterns.
type Registry struct {
	patterns []Pattern
}

// New creates a registry from the given patterns.
func New(patterns ...Pattern) *Registry {
	return &Registry{patterns: patterns}
}

// All returns the patterns in the registry.  The returned slice must not be
// modified.
func (r *Registry) All() []Pattern {
	return r.patterns
}

// Len returns the number of patterns in the registry.
func (r *Registry) Len() int {
	return len(r.patterns)
}

func mk(name, category string, defaultCost float64, logo, expr string) Pattern {
	return Pattern{
		Name:        name,
		Category:    category,
		DefaultCost: defaultCost,
		Logo:        logo,
		re:          regexp.MustCompile(expr),
	}
}

// Default returns the built-in registry of well-known subscription services.
func Default() *Registry {
	return New(
		mk("Netflix", "Streaming", 15.49, "🎬", `netflix`),
		mk("Spotify", "Music", 11.99, "🎵", `spotify`),
		mk("ChatGPT", "AI", 20.00, "🤖", `chatgpt|openai`),
		mk("Hulu", "Streaming", 0, "📺", `hulu`),
		mk("Disney+", "Streaming", 0, "🏰", `disney\s*(\+|plus)`),
		mk("HBO Max", "Streaming", 0, "🎥", `hbo|max\.com`),
		mk("Paramount+", "Streaming", 0, "⛰️", `paramount\s*(\+|plus)`),
		mk("Peacock", "Streaming", 0, "🦚", `peacock`),
		mk("Crunchyroll", "Streaming", 0, "🍥", `crunchyroll`),
		mk("YouTube Premium", "Streaming", 0, "▶️", `youtube\s*(premium|music|tv)`),
		mk("Amazon Prime", "Shopping", 0, "📦", `amazon\s*prime|amzn.*prime|prime\s*video`),
		mk("Apple", "Software", 0, "🍎", `apple\.com/bill|itunes|apple\s*servic`),
		mk("iCloud", "Cloud Storage", 0, "☁️", `icloud`),
		mk("Adobe", "Software", 0, "🎨", `adobe`),
		mk("Dropbox", "Cloud Storage", 0, "📂", `dropbox`),
		mk("Microsoft 365", "Software", 0, "🪟", `microsoft\s*(365|office)|msft\s*\*?\s*office`),
		mk("Audible", "Books", 0, "🎧", `audible`),
		mk("Kindle Unlimited", "Books", 0, "📚", `kindle\s*unlimited`),
		mk("NYTimes", "News", 0, "📰", `nytimes|ny\s*times|new york times`),
		mk("Xbox Game Pass", "Gaming", 0, "🎮", `xbox\s*(game\s*pass|live)`),
		mk("PlayStation Plus", "Gaming", 0, "🕹️", `playstation\s*(plus|network)|sony\s*psn`),
		mk("Nintendo Switch Online", "Gaming", 0, "🍄", `nintendo`),
		mk("Gym Membership", "Fitness", 0, "💪", `planet\s*fitness|la\s*fitness|equinox|24\s*hour\s*fitness|gym`),
		mk("Peloton", "Fitness", 0, "🚴", `peloton`),
	)
}
