// Package version tracks build metadata for the application.
package version

import (
	"strings"
	"sync"
)

// Info describes build metadata for the application.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

// String renders the metadata as "version (commit, built time)" with empty
// fields omitted.
func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Version)
	if i.Commit != "" || i.BuildTime != "" {
		parts := make([]string, 0, 2)
		if i.Commit != "" {
			parts = append(parts, i.Commit)
		}
		if i.BuildTime != "" {
			parts = append(parts, i.BuildTime)
		}
		b.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return b.String()
}

var (
	info      = Info{Version: "dev"}
	infoMutex sync.RWMutex
)

// Set updates the version metadata exposed by the application.
func Set(v Info) {
	infoMutex.Lock()
	defer infoMutex.Unlock()

	if v.Version == "" {
		v.Version = "dev"
	}
	info = v
}

// Current returns the currently configured build metadata.
func Current() Info {
	infoMutex.RLock()
	defer infoMutex.RUnlock()
	return info
}
