package ez

import (
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3gen"

	"newsletter-api/internal/openapi"
)

// Doc 是一条路由在 API 文档里的描述
type Doc struct {
	OperationID string
	Tags        []string
	Summary     string
	Description string
	Query       []Param
	Request     string // 请求体 schema 名，空则内联
	Response    string // 响应 data 的 schema 名，空则内联
}

// Param 查询参数
type Param struct {
	Name        string
	Type        string // openapi3.TypeString / TypeInteger ...
	Description string
}

type route struct {
	method string
	path   string // gin 风格，如 /api/users/:id
	secure bool
	status int
	doc    Doc
	in     any // 请求体样例（指针），nil 表示无请求体
	out    any // 响应 data 样例（指针），nil 表示无 body
	page   bool
}

// Catalog 收集 EZ 注册过的路由，实现 openapi.Describer
type Catalog struct {
	mu     sync.Mutex
	routes []route
}

var _ openapi.Describer = (*Catalog)(nil)

func NewCatalog() *Catalog { return &Catalog{} }

func (c *Catalog) add(r route) {
	c.mu.Lock()
	c.routes = append(c.routes, r)
	c.mu.Unlock()
}

// Len 已登记的路由数
func (c *Catalog) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.routes)
}

func (c *Catalog) Describe(doc *openapi3.T) error {
	c.mu.Lock()
	routes := append([]route(nil), c.routes...)
	c.mu.Unlock()

	sort.SliceStable(routes, func(i, j int) bool { return routes[i].path < routes[j].path })

	if doc.Components == nil {
		doc.Components = &openapi3.Components{}
	}
	if doc.Components.Schemas == nil {
		doc.Components.Schemas = openapi3.Schemas{}
	}
	if doc.Paths == nil {
		doc.Paths = openapi3.NewPaths()
	}

	for _, r := range routes {
		op, err := r.operation(doc.Components.Schemas)
		if err != nil {
			return fmt.Errorf("%s %s: %w", r.method, r.path, err)
		}
		doc.AddOperation(OpenAPIPath(r.path), r.method, op)
	}
	return nil
}

func (r route) operation(schemas openapi3.Schemas) (*openapi3.Operation, error) {
	op := &openapi3.Operation{
		OperationID: r.doc.OperationID,
		Tags:        r.doc.Tags,
		Summary:     r.doc.Summary,
		Description: r.doc.Description,
	}

	// 公共接口显式覆盖全局 security
	if r.secure {
		sec := openapi.BearerRequirement()
		op.Security = &sec
	} else {
		op.Security = openapi3.NewSecurityRequirements()
	}

	for _, name := range pathParams(r.path) {
		p := openapi3.NewPathParameter(name).WithSchema(openapi3.NewStringSchema())
		op.AddParameter(p)
	}
	for _, q := range r.doc.Query {
		s := openapi3.NewStringSchema()
		if q.Type == openapi3.TypeInteger {
			s = openapi3.NewIntegerSchema()
		}
		p := openapi3.NewQueryParameter(q.Name).WithSchema(s).WithDescription(q.Description)
		op.AddParameter(p)
	}

	if r.in != nil {
		ref, err := schemaRef(schemas, r.doc.Request, r.in)
		if err != nil {
			return nil, err
		}
		op.RequestBody = &openapi3.RequestBodyRef{
			Value: openapi3.NewRequestBody().WithRequired(true).WithJSONSchemaRef(ref),
		}
	}

	status := r.status
	if status == 0 {
		status = http.StatusOK
	}
	res := openapi3.NewResponse().WithDescription(http.StatusText(status))
	if r.out != nil {
		ref, err := schemaRef(schemas, r.doc.Response, r.out)
		if err != nil {
			return nil, err
		}
		if r.page {
			ref = openapi3.NewSchemaRef("", pageSchema(ref))
		}
		res = res.WithJSONSchema(envelopeSchema(ref))
	}
	op.Responses = openapi3.NewResponses(
		openapi3.WithStatus(status, &openapi3.ResponseRef{Value: res}),
	)
	return op, nil
}

// schemaRef 由样例生成 schema；给了名字就登记到 components 并返回引用
func schemaRef(schemas openapi3.Schemas, name string, sample any) (*openapi3.SchemaRef, error) {
	if name != "" {
		if _, ok := schemas[name]; ok {
			return openapi.SchemaRef(name), nil
		}
	}
	ref, err := openapi3gen.NewSchemaRefForValue(sample, schemas)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return ref, nil
	}
	schemas[name] = ref
	return openapi.SchemaRef(name), nil
}

func envelopeSchema(data *openapi3.SchemaRef) *openapi3.Schema {
	s := openapi3.NewObjectSchema().
		WithProperty("code", openapi3.NewIntegerSchema()).
		WithProperty("msg", openapi3.NewStringSchema())
	s.Properties["data"] = data
	return s
}

func pageSchema(item *openapi3.SchemaRef) *openapi3.Schema {
	list := openapi3.NewArraySchema()
	list.Items = item
	return openapi3.NewObjectSchema().
		WithProperty("list", list).
		WithProperty("total", openapi3.NewIntegerSchema()).
		WithProperty("page", openapi3.NewIntegerSchema()).
		WithProperty("size", openapi3.NewIntegerSchema())
}

// OpenAPIPath 把 gin 的 :param 写成 {param}
func OpenAPIPath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			segs[i] = "{" + s[1:] + "}"
		}
	}
	return strings.Join(segs, "/")
}

func pathParams(p string) []string {
	var out []string
	for _, s := range strings.Split(p, "/") {
		if strings.HasPrefix(s, ":") || strings.HasPrefix(s, "*") {
			out = append(out, s[1:])
		}
	}
	return out
}

func joinPath(base, rel string) string {
	if rel == "" {
		return base
	}
	return path.Join(base, rel)
}

// AddRaw 登记一条不经 EZ 注册的公共路由（无请求体、无响应 body）
func (c *Catalog) AddRaw(method, fullPath string, status int, doc Doc) {
	c.add(route{method: method, path: fullPath, status: status, doc: doc})
}
