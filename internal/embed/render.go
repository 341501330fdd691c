package embed

import (
	"bytes"
	"html/template"
	"math"
	"strings"

	"github.com/abem93/progress-widgets/internal/models"
)

const shortLabelLen = 25

var pageTmpl = template.Must(template.New("embed").Funcs(template.FuncMap{
	"short": shortLabel,
	"round": func(p float64) int { return int(math.Round(p)) },
	"image": imageURL,
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Name}}</title></head>
<body class="pw-embed">
{{- if .Missing}}
<div class="pw-missing"><h1>Widget Not Found</h1><p>The requested widget could not be found.</p></div>
{{- else}}
<div class="pw-items">
{{- range .Items}}
<div class="pw-item">
{{- with image .Image}}<img class="pw-image" src="{{.}}" alt="">{{end}}
<div class="pw-label"><span class="pw-short" title="{{.Label}}">{{short .Label}}</span><span class="pw-full" title="{{.Label}}">{{.Label}}</span></div>
<div class="pw-track"><div class="pw-bar bg-{{.Color}}-500" style="width: {{round .Percentage}}%"></div></div>
<div class="pw-value">{{round .Percentage}}<span>%</span></div>
</div>
{{- end}}
</div>
<p class="pw-footer">Progress Widget &bull; {{len .Items}} items</p>
{{- end}}
</body></html>
`))

type page struct {
	models.EmbedView
	Missing bool
}

// RenderHTML renders the iframe document for a widget view.
func RenderHTML(v models.EmbedView) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, page{EmbedView: v}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderNotFound renders the document shown for unknown widget ids.
func RenderNotFound() ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, page{Missing: true}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// imageURL marks stored data URLs as safe for src attributes. Only
// image/* data URLs pass; anything else renders no image.
func imageURL(img *string) template.URL {
	if img == nil || !strings.HasPrefix(*img, "data:image/") {
		return ""
	}
	return template.URL(*img)
}

func shortLabel(label string) string {
	r := []rune(label)
	if len(r) > shortLabelLen {
		return string(r[:shortLabelLen]) + "..."
	}
	return label
}
