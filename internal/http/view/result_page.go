package view

import (
	"bytes"
	"html/template"
)

// ResultPageData provides the dynamic fields required by the result template.
type ResultPageData struct {
	URL         string
	DownloadURL string
	StartOver   string
	Overwrite   bool
}

var resultPageTmpl = template.Must(template.New("result_page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8" />
	<meta name="viewport" content="width=device-width, initial-scale=1" />
	<title>Shortened link</title>
	{{template "style"}}
	<script>
		function copyToClipboard(text) {
			try {
				navigator.clipboard.writeText(text);
			} catch (err) {
				console.error("Couldn't write to clipboard:", err);
			}
		}
	</script>
</head>
<body>
	<div class="card">
		<h1>Your shortened link{{if .Overwrite}} (updated){{end}}:</h1>
		<div class="link"><a href="{{.URL}}">{{.URL}}</a></div>
		<div class="actions">
			<button class="button" onclick="copyToClipboard({{.URL}}); return false;">Copy Link</button>
			<a class="button" href="{{.DownloadURL}}">View JSON</a>
			<a class="button" href="{{.StartOver}}">Start Over</a>
		</div>
	</div>
</body>
</html>
`))

func init() {
	template.Must(resultPageTmpl.New("style").Parse(pageStyle))
}

// RenderResultPage expands the result page template with the provided data.
func RenderResultPage(data ResultPageData) (string, error) {
	if data.StartOver == "" {
		data.StartOver = "shortener.html"
	}
	var buf bytes.Buffer
	if err := resultPageTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
