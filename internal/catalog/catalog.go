package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pb33f/libopenapi"
	v3 "github.com/pb33f/libopenapi/datamodel/high/v3"

	"github.com/moamenhredeen/kvctl/internal/request"
)

// Route is an operation documented by the service
type Route struct {
	Method      string
	Path        string
	OperationID string
	Tags        []string

	operation *v3.Operation
}

// Coverage reports whether a client route is documented by the service
type Coverage struct {
	Client     request.Route
	Documented bool
	Match      *Route
}

// Catalog holds the routes of the service's OpenAPI document
type Catalog struct {
	document libopenapi.Document
	routes   []Route
}

// ParseFile parses an OpenAPI document from disk
func ParseFile(filePath string) (*Catalog, error) {
	specBytes, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OpenAPI file: %w", err)
	}
	return Parse(specBytes)
}

// Parse builds a catalog from an OpenAPI document
func Parse(specBytes []byte) (*Catalog, error) {
	document, err := libopenapi.NewDocument(specBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	c := &Catalog{document: document}
	if err := c.load(); err != nil {
		return nil, err
	}
	return c, nil
}

// ServerURLs returns the server URLs declared by the document
func (c *Catalog) ServerURLs() ([]string, error) {
	model, errs := c.document.BuildV3Model()
	if errs != nil {
		return nil, fmt.Errorf("failed to build v3 model: %v", errs)
	}

	urls := make([]string, 0, len(model.Model.Servers))
	for _, server := range model.Model.Servers {
		if server != nil && server.URL != "" {
			urls = append(urls, server.URL)
		}
	}
	return urls, nil
}

// Routes returns every documented route, sorted by path then method
func (c *Catalog) Routes() []Route {
	out := make([]Route, len(c.routes))
	copy(out, c.routes)
	return out
}

// Find returns the documented route matching method and path. Template
// segments such as {db_id} on either side match any segment; when several
// routes match, the one agreeing on the most segments wins.
func (c *Catalog) Find(method, path string) (*Route, bool) {
	var best *Route
	bestScore := -1
	for i := range c.routes {
		r := &c.routes[i]
		if r.Method != strings.ToUpper(method) {
			continue
		}
		if score, ok := matchTemplate(r.Path, path); ok && score > bestScore {
			best, bestScore = r, score
		}
	}
	return best, best != nil
}

// Check matches each client route against the document
func (c *Catalog) Check(routes []request.Route) []Coverage {
	coverage := make([]Coverage, 0, len(routes))
	for _, cr := range routes {
		match, ok := c.Find(cr.Method, cr.Path)
		coverage = append(coverage, Coverage{Client: cr, Documented: ok, Match: match})
	}
	return coverage
}

func (c *Catalog) load() error {
	model, errs := c.document.BuildV3Model()
	if errs != nil {
		return fmt.Errorf("failed to build v3 model: %v", errs)
	}

	paths := model.Model.Paths
	if paths == nil || paths.PathItems == nil {
		return nil
	}

	for pair := paths.PathItems.First(); pair != nil; pair = pair.Next() {
		path := pair.Key()
		item := pair.Value()
		if item == nil {
			continue
		}

		methods := map[string]*v3.Operation{
			"GET":     item.Get,
			"POST":    item.Post,
			"PUT":     item.Put,
			"PATCH":   item.Patch,
			"DELETE":  item.Delete,
			"HEAD":    item.Head,
			"OPTIONS": item.Options,
		}

		for method, op := range methods {
			if op == nil {
				continue
			}
			tags := []string{}
			if op.Tags != nil {
				tags = append(tags, op.Tags...)
			}
			c.routes = append(c.routes, Route{
				Method:      method,
				Path:        path,
				OperationID: op.OperationId,
				Tags:        tags,
				operation:   op,
			})
		}
	}

	sort.Slice(c.routes, func(i, j int) bool {
		if c.routes[i].Path != c.routes[j].Path {
			return c.routes[i].Path < c.routes[j].Path
		}
		return c.routes[i].Method < c.routes[j].Method
	})
	return nil
}

// matchTemplate reports whether two path templates can address the same
// resource, scoring one point per segment that agrees exactly in kind
func matchTemplate(a, b string) (int, bool) {
	as := splitPath(a)
	bs := splitPath(b)
	if len(as) != len(bs) {
		return 0, false
	}
	score := 0
	for i := range as {
		ap, bp := isParam(as[i]), isParam(bs[i])
		switch {
		case ap && bp:
			score++
		case ap || bp:
		case as[i] == bs[i]:
			score++
		default:
			return 0, false
		}
	}
	return score, true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isParam(segment string) bool {
	return strings.HasPrefix(segment, "{") && strings.HasSuffix(segment, "}")
}
