package ez

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	mdw "newsletter-api/internal/transport/http/middleware"
	resp "newsletter-api/internal/transport/http/response"
)

const (
	DefaultPageSize    = 15
	DefaultMaxPageSize = 100
)

// Match 过滤方式
type Match int

const (
	Exact   Match = iota // column = ?
	Partial              // column LIKE %?%
)

// Filter 把查询参数映射成 where 条件
type Filter struct {
	Param  string
	Column string
	Match  Match
}

// View 把实体渲染成某个序列化分组
type View[T any] struct {
	Schema string
	sample any
	render func(c *gin.Context, m *T) (any, error)
}

// Render 声明一个视图；O 用于生成文档 schema
func Render[T any, O any](schema string, fn func(m *T) O) *View[T] {
	return &View[T]{
		Schema: schema,
		sample: new(O),
		render: func(_ *gin.Context, m *T) (any, error) { return fn(m), nil },
	}
}

// RenderCtx 视图需要额外查询时使用（比如关联 id）
func RenderCtx[T any, O any](schema string, fn func(c *gin.Context, m *T) (O, error)) *View[T] {
	return &View[T]{
		Schema: schema,
		sample: new(O),
		render: func(c *gin.Context, m *T) (any, error) { return fn(c, m) },
	}
}

// Write 渲染 m 并以 status 输出
func (v *View[T]) Write(c *gin.Context, status int, m *T) {
	out, err := v.render(c, m)
	if err != nil {
		WriteError(c, err)
		return
	}
	c.JSON(status, resp.OK(out))
}

// Input 把请求体写进实体
type Input[T any] struct {
	Schema string
	sample any
	apply  func(c *gin.Context, m *T) error
}

// Bind 声明一个 JSON 入参；绑定失败返回 400，fn 返回的非 AErr 错误也按 400 处理
func Bind[T any, I any](schema string, fn func(c *gin.Context, m *T, in *I) error) *Input[T] {
	return &Input[T]{
		Schema: schema,
		sample: new(I),
		apply: func(c *gin.Context, m *T) error {
			var in I
			if err := c.ShouldBindJSON(&in); err != nil {
				return BadRequest(err.Error())
			}
			if err := fn(c, m, &in); err != nil {
				var ae *AErr
				if errors.As(err, &ae) {
					return err
				}
				return BadRequest(err.Error())
			}
			return nil
		},
	}
}

// Page 集合接口的 data
type Page struct {
	List  []any `json:"list"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Size  int   `json:"size"`
}

// Resource 一个实体 + 权限规则 => 一组 CRUD 路由
//
// 为 nil 的视图/入参对应的操作不会注册：List→GET 集合，Item→GET 单个，
// Create→POST，Update→PUT，Delete→DELETE。
type Resource[T any] struct {
	Name        string // operationId 与 tag，如 "User"
	Path        string // 相对分组，如 "/users"
	Description string
	Role        string // 所有操作要求的角色，空表示不校验

	PageSize    int // 默认 15
	MaxPageSize int // itemsPerPage 上限，默认 100
	Order       string
	Filters     []Filter

	List    *View[T]
	Item    *View[T]
	Created *View[T] // POST 的响应视图，默认用 Item
	Create  *Input[T]
	Update  *Input[T]
	Delete  bool

	New func(now time.Time) *T
	// Load 覆盖 GET 单个的读取（比如走缓存）；写操作总是直接查库
	Load        func(ctx context.Context, db *gorm.DB, id uint) (*T, error)
	// 以下钩子在写事务内执行，返回错误会回滚
	AfterWrite   func(c *gin.Context, tx *gorm.DB, m *T) error
	BeforeDelete func(c *gin.Context, tx *gorm.DB, id uint) error
	AfterDelete  func(c *gin.Context, tx *gorm.DB, id uint) error
	// Committed 在 create/update/delete 提交成功后执行（比如清缓存）
	Committed func(c *gin.Context, id uint)
}

// Mount 在 e 的分组上注册路由，并写入 e 的文档目录
func (r *Resource[T]) Mount(e EZ, db *gorm.DB) {
	base := joinPath(e.g.BasePath(), r.Path)
	item := r.Path + "/:id"
	tags := []string{r.Name}

	if r.List != nil {
		e.g.GET(r.Path, r.guard(func(c *gin.Context) { r.list(c, db) }))
		e.record(route{
			method: http.MethodGet, path: base, secure: r.secure(), page: true,
			out: r.List.sample,
			doc: Doc{
				OperationID: "get" + r.Name + "Collection", Tags: tags,
				Summary:     "Retrieves the collection of " + r.Name + " resources.",
				Description: r.Description,
				Query:       r.queryParams(), Response: r.List.Schema,
			},
		})
	}
	if r.Item != nil {
		e.g.GET(item, r.guard(func(c *gin.Context) { r.get(c, db) }))
		e.record(route{
			method: http.MethodGet, path: base + "/:id", secure: r.secure(),
			out: r.Item.sample,
			doc: Doc{
				OperationID: "get" + r.Name + "Item", Tags: tags,
				Summary:  "Retrieves a " + r.Name + " resource.",
				Response: r.Item.Schema,
			},
		})
	}
	if r.Create != nil {
		v := r.created()
		e.g.POST(r.Path, r.guard(func(c *gin.Context) { r.create(c, db) }))
		e.record(route{
			method: http.MethodPost, path: base, secure: r.secure(), status: http.StatusCreated,
			in: r.Create.sample, out: v.sample,
			doc: Doc{
				OperationID: "post" + r.Name + "Collection", Tags: tags,
				Summary: "Creates a " + r.Name + " resource.",
				Request: r.Create.Schema, Response: v.Schema,
			},
		})
	}
	if r.Update != nil {
		e.g.PUT(item, r.guard(func(c *gin.Context) { r.update(c, db) }))
		e.record(route{
			method: http.MethodPut, path: base + "/:id", secure: r.secure(),
			in: r.Update.sample, out: r.Item.sample,
			doc: Doc{
				OperationID: "put" + r.Name + "Item", Tags: tags,
				Summary: "Replaces the " + r.Name + " resource.",
				Request: r.Update.Schema, Response: r.Item.Schema,
			},
		})
	}
	if r.Delete {
		e.g.DELETE(item, r.guard(func(c *gin.Context) { r.remove(c, db) }))
		e.record(route{
			method: http.MethodDelete, path: base + "/:id", secure: r.secure(),
			status: http.StatusNoContent,
			doc: Doc{
				OperationID: "delete" + r.Name + "Item", Tags: tags,
				Summary: "Removes the " + r.Name + " resource.",
			},
		})
	}
}

func (e EZ) record(r route) {
	if e.cat != nil {
		e.cat.add(r)
	}
}

func (r *Resource[T]) secure() bool { return r.Role != "" }

func (r *Resource[T]) created() *View[T] {
	if r.Created != nil {
		return r.Created
	}
	return r.Item
}

// guard 校验资源要求的角色；claims 由分组上的 AuthJWT 写入
func (r *Resource[T]) guard(h gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if r.Role == "" {
			h(c)
			return
		}
		claims := mdw.Claims(c)
		if claims == nil {
			WriteError(c, Unauthorized("unauthorized"))
			return
		}
		if !claims.HasRole(r.Role) {
			WriteError(c, Forbidden("forbidden"))
			return
		}
		h(c)
	}
}

func (r *Resource[T]) queryParams() []Param {
	ps := []Param{
		{Name: "page", Type: openapi3.TypeInteger, Description: "The collection page number"},
		{Name: "itemsPerPage", Type: openapi3.TypeInteger, Description: "The number of items per page"},
	}
	for _, f := range r.Filters {
		ps = append(ps, Param{Name: f.Param, Type: openapi3.TypeString})
	}
	return ps
}

func (r *Resource[T]) list(c *gin.Context, db *gorm.DB) {
	page, err := positiveQuery(c, "page", 1)
	if err != nil {
		WriteError(c, err)
		return
	}
	size := r.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	limit := r.MaxPageSize
	if limit <= 0 {
		limit = DefaultMaxPageSize
	}
	size, err = positiveQuery(c, "itemsPerPage", size)
	if err != nil {
		WriteError(c, err)
		return
	}
	size = min(size, limit)
	if page-1 > math.MaxInt32/size {
		WriteError(c, BadRequest("page is out of range"))
		return
	}

	q := db.WithContext(c.Request.Context()).Model(new(T))
	for _, f := range r.Filters {
		v := c.Query(f.Param)
		if v == "" {
			continue
		}
		col := clause.Column{Name: f.Column}
		switch f.Match {
		case Partial:
			q = q.Where(clause.Like{Column: col, Value: "%" + v + "%"})
		default:
			q = q.Where(clause.Eq{Column: col, Value: v})
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		WriteError(c, Internal("count "+r.Name+" failed", err))
		return
	}
	order := r.Order
	if order == "" {
		order = "id"
	}
	var rows []T
	if err := q.Order(order).Limit(size).Offset((page - 1) * size).Find(&rows).Error; err != nil {
		WriteError(c, Internal("list "+r.Name+" failed", err))
		return
	}

	out := Page{List: make([]any, 0, len(rows)), Total: total, Page: page, Size: size}
	for i := range rows {
		v, err := r.List.render(c, &rows[i])
		if err != nil {
			WriteError(c, err)
			return
		}
		out.List = append(out.List, v)
	}
	c.JSON(http.StatusOK, resp.OK(out))
}

func (r *Resource[T]) get(c *gin.Context, db *gorm.DB) {
	id, ok := idParam(c, "id")
	if !ok {
		WriteError(c, NotFound(r.Name+" not found"))
		return
	}
	load := r.Load
	if load == nil {
		load = r.find
	}
	m, err := load(c.Request.Context(), db, id)
	if err != nil {
		WriteError(c, Internal("load "+r.Name+" failed", err))
		return
	}
	if m == nil {
		WriteError(c, NotFound(r.Name+" not found"))
		return
	}
	r.Item.Write(c, http.StatusOK, m)
}

func (r *Resource[T]) create(c *gin.Context, db *gorm.DB) {
	var m *T
	if r.New != nil {
		m = r.New(time.Now().UTC())
	} else {
		m = new(T)
	}
	if err := r.Create.apply(c, m); err != nil {
		WriteError(c, err)
		return
	}
	err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			if isDupKey(err) {
				return Conflict(r.Name + " already exists")
			}
			return Internal("create "+r.Name+" failed", err)
		}
		if r.AfterWrite != nil {
			return r.AfterWrite(c, tx, m)
		}
		return nil
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	r.committed(c, idOf(m))
	r.created().Write(c, http.StatusCreated, m)
}

func (r *Resource[T]) update(c *gin.Context, db *gorm.DB) {
	id, ok := idParam(c, "id")
	if !ok {
		WriteError(c, NotFound(r.Name+" not found"))
		return
	}
	var m *T
	err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		m, err = r.find(c.Request.Context(), tx, id)
		if err != nil {
			return Internal("load "+r.Name+" failed", err)
		}
		if m == nil {
			return NotFound(r.Name + " not found")
		}
		if err := r.Update.apply(c, m); err != nil {
			return err
		}
		if err := tx.Save(m).Error; err != nil {
			if isDupKey(err) {
				return Conflict(r.Name + " already exists")
			}
			return Internal("update "+r.Name+" failed", err)
		}
		if r.AfterWrite != nil {
			if err := r.AfterWrite(c, tx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	r.committed(c, id)
	r.Item.Write(c, http.StatusOK, m)
}

func (r *Resource[T]) remove(c *gin.Context, db *gorm.DB) {
	id, ok := idParam(c, "id")
	if !ok {
		WriteError(c, NotFound(r.Name+" not found"))
		return
	}
	err := db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if r.BeforeDelete != nil {
			if err := r.BeforeDelete(c, tx, id); err != nil {
				return err
			}
		}
		res := tx.Delete(new(T), id)
		if res.Error != nil {
			return Internal("delete "+r.Name+" failed", res.Error)
		}
		if res.RowsAffected == 0 {
			return NotFound(r.Name + " not found")
		}
		if r.AfterDelete != nil {
			return r.AfterDelete(c, tx, id)
		}
		return nil
	})
	if err != nil {
		WriteError(c, err)
		return
	}
	r.committed(c, id)
	c.Status(http.StatusNoContent)
}

func (r *Resource[T]) committed(c *gin.Context, id uint) {
	if r.Committed != nil {
		r.Committed(c, id)
	}
}

// Identified 实体实现后，Committed 在 create 时才能拿到新 id
type Identified interface{ GetID() uint }

func idOf(m any) uint {
	if v, ok := m.(Identified); ok {
		return v.GetID()
	}
	return 0
}

func (r *Resource[T]) find(ctx context.Context, db *gorm.DB, id uint) (*T, error) {
	m := new(T)
	err := db.WithContext(ctx).First(m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// idParam 解析路径上的自增 id；非法 id 按不存在处理
func idParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// IDParam 供 Action 使用
func IDParam(c *gin.Context, name string) (uint, error) {
	id, ok := idParam(c, name)
	if !ok {
		return 0, NotFound("invalid " + name)
	}
	return id, nil
}

func positiveQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, BadRequest(key + " must be a positive integer")
	}
	return n, nil
}
