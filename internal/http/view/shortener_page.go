package view

import (
	"bytes"
	"html/template"
)

// ShortenerPageData prefills the shortener form.
type ShortenerPageData struct {
	Action   string
	Filename string
	Title    string
	Text     string
	// EditWindow is how long an unprotected link can be resaved, e.g. "7 days".
	EditWindow string
}

var shortenerPageTmpl = template.Must(template.New("shortener_page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>Neuroglancer link shortener</title>
	{{template "style"}}
</head>
<body>
	<div class="card">
		<h1>Shorten a neuroglancer link</h1>
		<p>Paste a neuroglancer link or its JSON state. Leave the name empty to use a timestamp.</p>
		<form method="post" action="{{.Action}}">
			<input type="hidden" name="client" value="web" />

			<label for="filename">Name</label>
			<input id="filename" name="filename" value="{{.Filename}}" placeholder="my-link" />
			<div class="hint">Spaces become underscores.</div>

			<label for="title">Title</label>
			<input id="title" name="title" value="{{.Title}}" />

			<label for="password">Password</label>
			<input id="password" name="password" type="password" autocomplete="new-password" />
			<div class="hint">Links with a password can be edited at any time.{{with .EditWindow}} Without one, a link can be resaved for {{.}}.{{end}}</div>

			<label for="text">Link</label>
			<textarea id="text" name="text" required>{{.Text}}</textarea>

			<div class="actions">
				<button class="button" type="submit">Shorten</button>
			</div>
		</form>
	</div>
</body>
</html>
`))

func init() {
	template.Must(shortenerPageTmpl.New("style").Parse(pageStyle))
}

// RenderShortenerPage expands the form template.
func RenderShortenerPage(data ShortenerPageData) (string, error) {
	if data.Action == "" {
		data.Action = "shortng"
	}
	var buf bytes.Buffer
	if err := shortenerPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
