// Command check_boundaries enforces the import layering of the module:
// services never import each other, domain and application code stay free
// of adapters, and platform packages stay free of service code.
//
//	go run ./scripts/check_boundaries.go
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "pollstack"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

// layerRule restricts what one layer of a service may import. Service-local
// layers are given relative to the service root.
type layerRule struct {
	ownLayers []string
	shared    []string
	external  []string
}

var serviceLayers = map[string]layerRule{
	"domain": {
		ownLayers: []string{"domain"},
	},
	"ports": {
		ownLayers: []string{"domain"},
		shared:    []string{"internal/platform/txcoord"},
	},
	"application": {
		ownLayers: []string{"application", "domain", "ports"},
		external:  []string{"golang.org/x/sync"},
	},
}

// platformContextImporters may reach into service packages; every other
// platform package must not.
var platformContextImporters = []string{
	"internal/platform/httpserver",
}

func main() {
	violations := append(checkServices("contexts"), checkPlatform("internal/platform")...)
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Printf("%d boundary violations:\n", len(violations))
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func checkServices(root string) []violation {
	var out []violation
	walkGoFiles(root, func(path string, parts []string, imports []importRef) {
		// contexts/<context>/<service>/<layer>/...
		if len(parts) < 4 {
			return
		}
		serviceRoot := modulePath + "/" + strings.Join(parts[:3], "/")
		layer := parts[3]
		rule, layered := serviceLayers[layer]

		for _, imp := range imports {
			if hasPrefix(imp.path, modulePath+"/contexts") && !hasPrefix(imp.path, serviceRoot) {
				out = append(out, imp.violation(path, "services must not import other services; wire them in internal/app/bridges"))
				continue
			}
			if hasPrefix(imp.path, modulePath+"/internal/app") {
				out = append(out, imp.violation(path, "services must not import the composition root"))
				continue
			}
			if layered && !rule.allows(serviceRoot, imp.path) {
				out = append(out, imp.violation(path, layer+" import is outside its allowlist"))
			}
		}
	})
	return out
}

func checkPlatform(root string) []violation {
	var out []violation
	walkGoFiles(root, func(path string, _ []string, imports []importRef) {
		pkg := filepath.ToSlash(filepath.Dir(path))
		mayImportServices := false
		for _, allowed := range platformContextImporters {
			if hasPrefix(pkg, allowed) {
				mayImportServices = true
			}
		}
		for _, imp := range imports {
			switch {
			case hasPrefix(imp.path, modulePath+"/internal/app"):
				out = append(out, imp.violation(path, "platform must not import the composition root"))
			case hasPrefix(imp.path, modulePath+"/contexts") && !mayImportServices:
				out = append(out, imp.violation(path, "platform must not import services"))
			}
		}
	})
	return out
}

func (r layerRule) allows(serviceRoot string, importPath string) bool {
	if isStdlib(importPath) {
		return true
	}
	for _, layer := range r.ownLayers {
		if hasPrefix(importPath, serviceRoot+"/"+layer) {
			return true
		}
	}
	for _, shared := range r.shared {
		if hasPrefix(importPath, modulePath+"/"+shared) {
			return true
		}
	}
	for _, external := range r.external {
		if hasPrefix(importPath, external) {
			return true
		}
	}
	return false
}

type importRef struct {
	path string
	line int
}

func (i importRef) violation(file string, rule string) violation {
	return violation{File: file, Line: i.line, Import: i.path, Rule: rule}
}

// walkGoFiles calls fn for every non-test Go file under root with its
// slash-separated path segments and parsed imports.
func walkGoFiles(root string, fn func(path string, parts []string, imports []importRef)) {
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}
		normalized := filepath.ToSlash(path)
		fset := token.NewFileSet()
		file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip %s: %v\n", normalized, err)
			return nil
		}
		imports := make([]importRef, 0, len(file.Imports))
		for _, imp := range file.Imports {
			imports = append(imports, importRef{
				path: strings.Trim(imp.Path.Value, "\""),
				line: fset.Position(imp.Pos()).Line,
			})
		}
		fn(normalized, strings.Split(normalized, "/"), imports)
		return nil
	})
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isStdlib(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return first != modulePath && !strings.Contains(first, ".")
}
