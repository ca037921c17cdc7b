package ez

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"newsletter-api/internal/domain"
	"newsletter-api/internal/testutil"
)

func TestOpenAPIPath(t *testing.T) {
	assert.Equal(t, "/api/users/{id}", OpenAPIPath("/api/users/:id"))
	assert.Equal(t, "/api/users/{id}/newsletters/{newsletterId}", OpenAPIPath("/api/users/:id/newsletters/:newsletterId"))
	assert.Equal(t, "/api/users", OpenAPIPath("/api/users"))
	assert.Equal(t, []string{"id", "newsletterId"}, pathParams("/api/users/:id/newsletters/:newsletterId"))
}

func TestWriteError_Status(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		err  error
		code int
	}{
		{BadRequest("x"), http.StatusBadRequest},
		{Unauthorized("x"), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{Internal("x", errors.New("db down")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		WriteError(c, tc.err)
		assert.Equal(t, tc.code, w.Code)

		var body struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Code)
	}
}

func TestWriteError_KeepsCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	cause := errors.New("db down")
	WriteError(c, Internal("load failed", cause))

	require.Len(t, c.Errors, 1)
	assert.ErrorIs(t, c.Errors[0].Err, cause)
	assert.NotContains(t, w.Body.String(), "db down")
}

func TestIsDupKey(t *testing.T) {
	assert.True(t, isDupKey(errors.New("UNIQUE constraint failed: user.uuid")))
	assert.True(t, isDupKey(errors.New("Error 1062: Duplicate entry 'x' for key 'uuid'")))
	assert.False(t, isDupKey(errors.New("no such table")))
}

type pingOut struct {
	Pong string `json:"pong"`
}

func TestRegisterAction_Catalog(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	r := gin.New()
	cat := NewCatalog()
	e := New(r.Group("/api")).WithCatalog(cat)

	RegisterAction(e, db, Action[struct{}, pingOut]{
		Method: http.MethodGet,
		Path:   "/ping/:id",
		Binder: BindNone,
		Doc:    &Doc{OperationID: "getPing", Response: "Ping"},
		Handler: func(c *gin.Context, _ *gorm.DB, _ *struct{}) (pingOut, error) {
			return pingOut{Pong: c.Param("id")}, nil
		},
	})
	RegisterAction(e, db, Action[struct{}, NoContent]{
		Method:  http.MethodPost,
		Path:    "/noop",
		Binder:  BindNone,
		Handler: func(*gin.Context, *gorm.DB, *struct{}) (NoContent, error) { return NoContent{}, nil },
	})
	assert.Equal(t, 1, cat.Len())

	doc := &openapi3.T{}
	require.NoError(t, cat.Describe(doc))
	item := doc.Paths.Value("/api/ping/{id}")
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	assert.Equal(t, "getPing", item.Get.OperationID)
	assert.Len(t, item.Get.Parameters, 1)
	assert.Contains(t, doc.Components.Schemas, "Ping")
	require.NotNil(t, item.Get.Security)
	assert.Empty(t, *item.Get.Security)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/noop", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestRegisterAction_RequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	r := gin.New()
	RegisterAction(New(r.Group("")), db, Action[struct{}, pingOut]{
		Method: http.MethodGet,
		Path:   "/secret",
		Binder: BindNone,
		Auth:   true,
		Handler: func(*gin.Context, *gorm.DB, *struct{}) (pingOut, error) {
			return pingOut{}, nil
		},
	})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/secret", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterAction_CommittedRunsAfterCommit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	r := gin.New()

	var seen []uint
	visible := false
	RegisterAction(New(r.Group("")), db, Action[struct{}, pingOut]{
		Method: http.MethodPost,
		Path:   "/news/:name",
		Binder: BindNone,
		UseTx:  true,
		Handler: func(c *gin.Context, tx *gorm.DB, _ *struct{}) (pingOut, error) {
			n := domain.NewNewsletter(time.Now().UTC())
			n.Name, n.Subject, n.HTMLContent, n.Type = c.Param("name"), "s", "h", "t"
			if err := tx.Create(n).Error; err != nil {
				return pingOut{}, err
			}
			if n.Name == "bad" {
				return pingOut{}, BadRequest("bad")
			}
			return pingOut{Pong: n.Name}, nil
		},
		Committed: func(c *gin.Context, out pingOut) {
			var got domain.Newsletter
			visible = db.First(&got, "name = ?", out.Pong).Error == nil
			seen = append(seen, got.ID)
		},
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/news/good", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, visible)
	assert.Len(t, seen, 1)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/news/bad", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, seen, 1)
	var n int64
	require.NoError(t, db.Model(&domain.Newsletter{}).Where("name = ?", "bad").Count(&n).Error)
	assert.Zero(t, n)
}

func TestResource_Hooks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	keep := testutil.SeedNewsletter(t, db, "keep")
	drop := testutil.SeedNewsletter(t, db, "drop")
	r := gin.New()

	var committed []uint
	res := &Resource[domain.Newsletter]{
		Name:   "Newsletter",
		Path:   "/newsletters",
		Delete: true,
		BeforeDelete: func(_ *gin.Context, _ *gorm.DB, id uint) error {
			if id == keep.ID {
				return Conflict("still referenced")
			}
			return nil
		},
		Committed: func(_ *gin.Context, id uint) { committed = append(committed, id) },
	}
	res.Mount(New(r.Group("")), db)

	del := func(id uint) int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/newsletters/%d", id), nil))
		return w.Code
	}
	assert.Equal(t, http.StatusConflict, del(keep.ID))
	assert.Equal(t, http.StatusNoContent, del(drop.ID))
	assert.Equal(t, http.StatusNotFound, del(drop.ID))
	assert.Equal(t, []uint{drop.ID}, committed)

	var n int64
	require.NoError(t, db.Model(&domain.Newsletter{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestIdOf(t *testing.T) {
	assert.Equal(t, uint(4), idOf(&domain.User{ID: 4}))
	assert.Equal(t, uint(9), idOf(&domain.Newsletter{ID: 9}))
	assert.Zero(t, idOf(&pingOut{}))
}
