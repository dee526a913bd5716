package gen

import "text/template"

var decoratorTpl = template.Must(template.New("decorator").Parse(`// Code generated by flow; DO NOT EDIT.

package {{.Package}}

import (
{{- range .Imports}}
	"{{.}}"
{{- end}}
)

// {{.Decorator}} intercepts {{.Class}}.
type {{.Decorator}} struct {
	{{.Embed}}
	proxy *aop.Proxy
}

func {{.Constructor}}(p *aop.Proxy) any {
	return &{{.Decorator}}{ {{- .Field}}: p.Target().({{.Embed}}), proxy: p}
}
{{range .Methods}}
func (d *{{$.Decorator}}) {{.Name}}({{.Params}}) {{.Results}} {
	{{if .Returns}}r := {{end}}d.proxy.Invoke({{printf "%q" .Name}}{{.Args}})
{{- if .Returns}}
	return {{.Returns}}
{{- end}}
}
{{end}}`))

var registryTpl = template.Must(template.New("registry").Parse(`// Code generated by flow; DO NOT EDIT.

package {{.Package}}

import "github.com/go-park/flow/pkg/aop"

// Register{{.Exported}}Proxies adds the decorators generated for this package to r.
func Register{{.Exported}}Proxies(r *aop.DecoratorRegistry) {
{{- range .Classes}}
	r.Register({{printf "%q" .Class}}, {{.Constructor}})
{{- end}}
}
`))

type (
	classData struct {
		Package     string
		Class       string
		Decorator   string
		Constructor string
		Embed       string
		Field       string
		Imports     []string
		Methods     []methodData
	}

	methodData struct {
		Name    string
		Params  string
		Args    string
		Results string
		Returns string
	}

	registryData struct {
		Package  string
		Exported string
		Classes  []classData
	}
)
