package astutils

import (
	"fmt"
	"go/ast"
	"go/token"

	"github.com/go-park/flow/pkg/annotation"
)

// docIndex maps declarations of one package to their syntax nodes and doc
// comments. Keys are "Type", "Type.Method", "Type.Field" and "Func".
type docIndex struct {
	fset   *token.FileSet
	types  map[string]*ast.TypeSpec
	docs   map[string]*ast.CommentGroup
	fields map[string]*ast.Field
}

func newDocIndex(fset *token.FileSet, files []*ast.File) *docIndex {
	d := &docIndex{
		fset:   fset,
		types:  map[string]*ast.TypeSpec{},
		docs:   map[string]*ast.CommentGroup{},
		fields: map[string]*ast.Field{},
	}
	for _, f := range files {
		for _, decl := range f.Decls {
			switch decl := decl.(type) {
			case *ast.GenDecl:
				d.genDecl(decl)
			case *ast.FuncDecl:
				d.funcDecl(decl)
			}
		}
	}
	return d
}

func (d *docIndex) genDecl(decl *ast.GenDecl) {
	if decl.Tok != token.TYPE {
		return
	}
	for _, s := range decl.Specs {
		spec, ok := s.(*ast.TypeSpec)
		if !ok {
			continue
		}
		name := spec.Name.Name
		d.types[name] = spec
		doc := spec.Doc
		if doc == nil && len(decl.Specs) == 1 {
			doc = decl.Doc
		}
		d.docs[name] = doc
		var fields *ast.FieldList
		switch t := spec.Type.(type) {
		case *ast.StructType:
			fields = t.Fields
		case *ast.InterfaceType:
			fields = t.Methods
		}
		if fields == nil {
			continue
		}
		for _, fi := range fields.List {
			for _, n := range fi.Names {
				d.fields[name+"."+n.Name] = fi
				d.docs[name+"."+n.Name] = fi.Doc
			}
		}
	}
}

func (d *docIndex) funcDecl(decl *ast.FuncDecl) {
	if decl.Recv == nil || len(decl.Recv.List) == 0 {
		d.docs[decl.Name.Name] = decl.Doc
		return
	}
	if ident, ok := receiverIdent(decl.Recv.List[0].Type); ok {
		d.docs[ident.Name+"."+decl.Name.Name] = decl.Doc
	}
}

// annotations parses the doc comment stored under key.
func (d *docIndex) annotations(key string) (annotation.List, error) {
	doc := d.docs[key]
	annos, err := annotation.ParseComment(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %s: %w", d.fset.Position(doc.Pos()), key, err)
	}
	return annos, nil
}

func receiverIdent(expr ast.Expr) (*ast.Ident, bool) {
	switch t := expr.(type) {
	case *ast.Ident:
		return t, true
	case *ast.StarExpr:
		return receiverIdent(t.X)
	case *ast.IndexExpr:
		return receiverIdent(t.X)
	case *ast.IndexListExpr:
		return receiverIdent(t.X)
	}
	return nil, false
}
