package goofflinecache

type Config struct {
	// Version names the current cache generation. Bumping it and running the
	// manager again migrates to a fresh generation; Activate then removes
	// every other one.
	Version string

	// Origin is the base URL the precache paths are resolved against,
	// eg. https://gifter.example.com
	Origin string

	// Precache lists the paths fetched and stored during Install. Install is
	// all-or-nothing: a single unreachable path fails the whole step and
	// leaves the store untouched.
	Precache []string

	// OfflinePath is the page served when the network is down and the
	// requested URL has no cached snapshot.
	OfflinePath string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() Config {
	return Config{
		Version:     "offline-v1",
		OfflinePath: "/offline/",
		Precache: []string{
			"/",
			"/offline/",
			"/static/images/offline.png",
			"/static/images/logo.png",
			"/static/favicon.ico",
			"/static/css/styles.css",
		},
	}
}
