// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wildcard

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/tidwall/pretty"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.}}</title>
<style>body{font-family:sans-serif;margin:2em}pre{background:#f6f8fa;padding:1em;overflow:auto}</style>
</head>
<body>
{{end}}
{{define "foot"}}</body>
</html>
{{end}}
{{define "message"}}{{template "head" .Title}}<h1>{{.Title}}</h1>
<pre>{{.Text}}</pre>
{{template "foot"}}{{end}}
{{define "result"}}{{template "head" .Endpoint}}<h1>Result of <code>{{.Endpoint}}</code></h1>
<pre>{{.JSON}}</pre>
{{template "foot"}}{{end}}
{{define "error"}}{{template "head" .Endpoint}}<h1>Endpoint <code>{{.Endpoint}}</code> failed</h1>
<pre>{{.Error}}</pre>
{{if .Stack}}<h2>Stack</h2>
<pre>{{.Stack}}</pre>
{{end}}{{template "foot"}}{{end}}
{{define "introspection"}}{{template "head" "Endpoints"}}<h1>Endpoints</h1>
{{if .Names}}<ul>
{{range .Names}}<li><a href="{{$.Base}}{{.Path}}">{{.Name}}</a></li>
{{end}}</ul>
{{else}}<p>No endpoint is defined.</p>
{{end}}{{template "foot"}}{{end}}
`))

func render(name string, data any) string {
	var b strings.Builder
	if err := pages.ExecuteTemplate(&b, name, data); err != nil {
		return "template " + name + ": " + err.Error()
	}
	return strings.TrimLeft(b.String(), "\n")
}

func renderMessagePage(title, text string) string {
	return render("message", struct{ Title, Text string }{title, text})
}

func renderResultPage(endpoint, body string) string {
	return render("result", struct{ Endpoint, JSON string }{endpoint, string(pretty.Pretty([]byte(body)))})
}

func renderErrorPage(endpoint string, err error, stack []byte) string {
	return render("error", struct {
		Endpoint, Error, Stack string
	}{endpoint, err.Error(), string(stack)})
}

type endpointLink struct {
	Name, Path string
}

func renderIntrospectionPage(base string, names []string) string {
	links := make([]endpointLink, len(names))
	for i, n := range names {
		links[i] = endpointLink{Name: n, Path: url.PathEscape(n)}
	}
	return render("introspection", struct {
		Base  string
		Names []endpointLink
	}{base, links})
}
