package frontend

import "html/template"

// pageData は商品ページのテンプレートデータ
type pageData struct {
	Version string
	Badge   string
	Message string
	Error   string
	Source  string
	Items   []pageItem
}

type pageItem struct {
	Name  string
	Price float64
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>E-Commerce Frontend ({{.Version}})</title>
    <style>
        body { font-family: Arial; margin: 40px; background: #f5f5f5; }
        .container { background: white; padding: 20px; border-radius: 8px; }
        .error { color: red; border: 2px solid red; padding: 10px; background: #ffebee; }
        .warning { color: orange; border: 2px solid orange; padding: 10px; background: #fff3e0; }
        .success { color: green; border: 2px solid green; padding: 10px; background: #e8f5e9; }
        .info { color: blue; border: 2px solid blue; padding: 10px; background: #e3f2fd; }
        .product { border: 1px solid #ddd; margin: 10px 0; padding: 10px; }
        .version { color: #666; font-style: italic; }
        .badge { padding: 4px 8px; border-radius: 4px; font-size: 12px; }
        .badge-live { background: #4caf50; color: white; }
        .badge-cached { background: #ff9800; color: white; }
        .badge-fallback { background: #2196f3; color: white; }
    </style>
</head>
<body>
    <div class="container">
        <h1>E-Commerce Store</h1>
        <p class="version">{{.Version}}</p>
        <h2>Products{{if .Badge}} <span class="badge badge-{{.Badge}}">{{.Source}}</span>{{end}}</h2>
{{- if .Error}}
        <div class="error">
            <h3>ERROR: {{.Error}}</h3>
            <p>Complete failure - no products displayed.</p>
        </div>
{{- else}}
{{- if .Message}}
        <div class="{{if eq .Badge "live"}}success{{else if eq .Badge "cached"}}warning{{else}}info{{end}}">{{.Message}}</div>
{{- end}}
{{- range .Items}}
        <div class="product"><strong>{{.Name}}</strong> - ${{printf "%.2f" .Price}}</div>
{{- end}}
{{- end}}
    </div>
</body>
</html>
`))
