// Package web は HTML テンプレートを埋め込みで提供します。
package web

import (
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templates embed.FS

var funcs = template.FuncMap{
	"seq": func(from, to int) []int {
		if to < from {
			return nil
		}
		out := make([]int, 0, to-from+1)
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	},
}

// Templates は埋め込まれたテンプレートをすべて読み込みます。
// 各ページはファイル名（例: todos.html）で参照できます。
func Templates() (*template.Template, error) {
	t, err := template.New("").Funcs(funcs).ParseFS(templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return t, nil
}
