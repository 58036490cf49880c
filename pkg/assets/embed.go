package assets

import "embed"

// Content is the embedded assets.
//
//go:embed js/* css/* *.html
var Content embed.FS
