// Package view はHTMLテンプレートの描画と静的ファイルを提供する。
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

// ページテンプレート名
const (
	PageIndex          = "index"
	PageAuthentication = "authentication"
	PageSignup         = "signup"
	PageHome           = "home"
	PageNotFound       = "404"
)

var pages = []string{PageIndex, PageAuthentication, PageSignup, PageHome, PageNotFound}

// Renderer はテンプレート名とデータマップからHTMLを描画する。
type Renderer struct {
	templates map[string]*template.Template
}

// NewRenderer は埋め込みテンプレートを共通レイアウトと組み合わせて解析する。
func NewRenderer() (*Renderer, error) {
	r := &Renderer{templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		tmpl, err := template.ParseFS(templatesFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return r, nil
}

// Render は指定テンプレートを描画してステータスコードとともに書き込む。
// 描画に失敗した場合は部分的な出力を送らず500を返す。
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, data map[string]any) {
	tmpl, ok := r.templates[name]
	if !ok {
		slog.Error("unknown template", slog.String("template", name))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("failed to render template",
			slog.String("template", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// StaticFS は埋め込み静的ファイルのファイルシステムを返す。
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
