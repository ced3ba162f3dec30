// Package assets embeds the map page sources and renders the minified page.
package assets

import (
	"bytes"
	_ "embed"
	"fmt"
	"net/url"
	"text/template"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/svg"
)

var (
	//go:embed index.html.tpl
	indexTemplate string

	//go:embed style.css
	styleCSS string

	//go:embed script.js
	scriptJS string

	// Favicon is the site icon served at /favicon.ico.
	//go:embed favicon.svg
	Favicon []byte
)

// FaviconType is the content type of Favicon.
const FaviconType = "image/svg+xml"

// PageData is the template input of the index page.
type PageData struct {
	Title     string
	CSS       string
	JS        string
	Icon      string
	Bootstrap string
}

func newMinifier() *minify.M {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/javascript", js.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return m
}

// Render builds the minified single page with the widget bootstrap document
// (JSON) inlined.
func Render(title string, bootstrap []byte) ([]byte, error) {
	m := newMinifier()

	cssMin, err := m.String("text/css", styleCSS)
	if err != nil {
		return nil, fmt.Errorf("minify CSS: %w", err)
	}

	jsMin, err := m.String("text/javascript", scriptJS)
	if err != nil {
		return nil, fmt.Errorf("minify JS: %w", err)
	}

	svgMin, err := m.String("image/svg+xml", string(Favicon))
	if err != nil {
		return nil, fmt.Errorf("minify SVG: %w", err)
	}

	tmpl, err := template.New("index").Parse(indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, PageData{
		Title:     template.HTMLEscapeString(title),
		CSS:       cssMin,
		JS:        jsMin,
		Icon:      url.PathEscape(svgMin),
		Bootstrap: string(bootstrap),
	})
	if err != nil {
		return nil, fmt.Errorf("execute template: %w", err)
	}

	page, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("minify HTML: %w", err)
	}

	return page, nil
}
