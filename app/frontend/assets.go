package ui

import "embed"

// Assets embeds the dashboard template and static assets into the binary so
// the server ships as a single executable.
//
//go:embed templates static
var Assets embed.FS
