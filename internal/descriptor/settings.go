package descriptor

// Settings carries the organizational constants written into every descriptor.
type Settings struct {
	// DictionaryURL is the shared parameter dictionary that well-known headers
	// reference; the header name is appended as a JSON pointer fragment.
	DictionaryURL string
	// DefaultTicket is written when the project has no ticket reference.
	DefaultTicket string
	// DefaultEmail is written when the project has no contact email.
	DefaultEmail string
	Template     string
	Environment  string
	Organization string
	GatewayHost  string
}

// DefaultSettings returns the organizational defaults.
func DefaultSettings() Settings {
	return Settings{
		DictionaryURL: "https://dictionaries.example.com/openapi/Base_Type_Components/1.6.yaml",
		DefaultTicket: "APIA-8584",
		DefaultEmail:  "api@example.com",
		Template:      "TMPLT_Base_1.2.0",
		Environment:   "campus",
		Organization:  "default",
		GatewayHost:   "nonprod",
	}
}

// Option mutates Settings.
type Option func(*Settings)

func WithDictionaryURL(u string) Option {
	return func(s *Settings) {
		if u != "" {
			s.DictionaryURL = u
		}
	}
}

func WithDefaultTicket(t string) Option {
	return func(s *Settings) {
		if t != "" {
			s.DefaultTicket = t
		}
	}
}

func WithOrganization(org string) Option {
	return func(s *Settings) {
		if org != "" {
			s.Organization = org
		}
	}
}

// WellKnownHeaders are emitted as references into the shared dictionary
// instead of inline header parameters.
var WellKnownHeaders = map[string]struct{}{
	"x-transaction-id": {},
	"x-message-id":     {},
	"x-trace-id":       {},
	"x-channel-id":     {},
	"x-user-id":        {},
	"x-app-id":         {},
	"x-uuid-id":        {},
	"x-ip-id":          {},
}

// IsWellKnownHeader reports membership in WellKnownHeaders.
func IsWellKnownHeader(name string) bool {
	_, ok := WellKnownHeaders[name]
	return ok
}
