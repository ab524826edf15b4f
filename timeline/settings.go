package timeline

// Filter keys queried from Settings. Every key defaults to allowed.
const (
	KeyNSFW      = "nsfw"      // posts behind a content warning
	KeyListBoost = "listboost" // reshared posts
	KeyListHome  = "listhome"  // posts on the home column
	KeyListUser  = "listuser"  // posts on a profile column
)

// Settings answers boolean filter queries. def is returned when the key is
// not configured.
type Settings interface {
	GetConfig(key string, def bool) bool
}

// SettingsFunc adapts a function to Settings.
type SettingsFunc func(key string, def bool) bool

func (f SettingsFunc) GetConfig(key string, def bool) bool { return f(key, def) }

// AllowAll returns the default for every key.
var AllowAll Settings = SettingsFunc(func(_ string, def bool) bool { return def })
