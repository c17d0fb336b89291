// Copyright 2026 The lltranslate Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	_ "embed"
	"html/template"
)

//go:embed templates/index.html
var indexHTML string

var indexTemplate = template.Must(template.New("index.html").Parse(indexHTML))

// pageData feeds templates/index.html.
type pageData struct {
	Models   []string
	Selected string
	Notices  []string
	Warning  string
	Error    string
	Text     string
	Language string
	Output   string
	Cached   bool
	Version  string
}
