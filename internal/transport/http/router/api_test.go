package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"newsletter-api/internal/core/auth"
	"newsletter-api/internal/core/cache"
	"newsletter-api/internal/domain"
	"newsletter-api/internal/repo"
	"newsletter-api/internal/testutil"
)

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type APISuite struct {
	suite.Suite
	db    *gorm.DB
	cache *cache.Cache // nil 时不走 redis
	jwt   *auth.JWTer
	api   *gin.Engine
	admin *gin.Engine
	user  *domain.User
	token string
}

func TestAPISuite(t *testing.T) {
	gin.SetMode(gin.TestMode)
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	s.db = testutil.NewDB(s.T())
	s.jwt = &auth.JWTer{Secret: []byte("test-secret"), Issuer: "newsletter-api", TTL: time.Hour}
	d := Deps{Log: zap.NewNop(), DB: s.db, JWT: s.jwt, Cache: s.cache, PhoneRegion: "FR"}

	var err error
	s.api, err = NewAPIEngine(d)
	s.Require().NoError(err)
	s.admin, err = NewAdminEngine(d)
	s.Require().NoError(err)

	s.user = testutil.SeedUser(s.T(), s.db, "root")
	s.token = s.issue(s.user)
}

func (s *APISuite) issue(u *domain.User) string {
	tok, err := s.jwt.Issue(auth.FromUser(u))
	s.Require().NoError(err)
	return tok
}

func (s *APISuite) do(h http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func (s *APISuite) data(w *httptest.ResponseRecorder, out any) {
	var env envelope
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	s.Require().NoError(json.Unmarshal(env.Data, out))
}

func (s *APISuite) TestLogout_AlwaysNoContent() {
	g := NewWithT(s.T())

	for _, tc := range []struct {
		body  any
		token string
	}{
		{nil, ""},
		{"not json at all", ""},
		{map[string]any{"anything": 1}, s.token},
		{nil, "garbage-token"},
	} {
		w := s.do(s.api, http.MethodPost, "/api/logout", tc.body, tc.token)
		g.Expect(w.Code).To(Equal(http.StatusNoContent))
		g.Expect(w.Body.Len()).To(BeZero())
	}
}

func (s *APISuite) TestLogin() {
	g := NewWithT(s.T())

	w := s.do(s.api, http.MethodPost, "/api/login", map[string]string{
		"username": s.user.UUID, "password": "root",
	}, "")
	g.Expect(w.Code).To(Equal(http.StatusOK))
	var out struct {
		Token string `json:"token"`
	}
	s.data(w, &out)
	claims, err := s.jwt.Parse(out.Token)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(claims.UID).To(Equal(s.user.ID))
	g.Expect(claims.Roles).To(ContainElement(domain.RoleUser))

	w = s.do(s.api, http.MethodPost, "/api/login", map[string]string{
		"username": s.user.UUID, "password": "nope",
	}, "")
	g.Expect(w.Code).To(Equal(http.StatusUnauthorized))

	w = s.do(s.api, http.MethodPost, "/api/login", map[string]string{"username": s.user.UUID}, "")
	g.Expect(w.Code).To(Equal(http.StatusBadRequest))
}

func (s *APISuite) TestRequiresToken() {
	g := NewWithT(s.T())

	g.Expect(s.do(s.api, http.MethodGet, "/api/users", nil, "").Code).To(Equal(http.StatusUnauthorized))
	g.Expect(s.do(s.api, http.MethodGet, "/api/newsletters", nil, "bad").Code).To(Equal(http.StatusUnauthorized))
	g.Expect(s.do(s.api, http.MethodGet, "/health", nil, "").Code).To(Equal(http.StatusOK))
}

func (s *APISuite) TestUserCRUD() {
	g := NewWithT(s.T())

	w := s.do(s.api, http.MethodPost, "/api/users", map[string]any{
		"password":    "secret",
		"firstName":   "Grace",
		"lastName":    "Hopper",
		"zipCode":     "75001",
		"phoneNumber": "0612345678",
		"birthdate":   "1906-12-09",
	}, s.token)
	g.Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
	var created struct {
		ID   uint   `json:"id"`
		UUID string `json:"uuid"`
	}
	s.data(w, &created)
	g.Expect(created.ID).NotTo(BeZero())
	g.Expect(created.UUID).To(HaveLen(36))

	path := fmt.Sprintf("/api/users/%d", created.ID)
	w = s.do(s.api, http.MethodGet, path, nil, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	g.Expect(w.Body.String()).NotTo(ContainSubstring("password"))
	var item map[string]any
	s.data(w, &item)
	g.Expect(item).To(HaveKeyWithValue("firstName", "Grace"))
	g.Expect(item).To(HaveKeyWithValue("birthdate", "1906-12-09"))
	g.Expect(item).To(HaveKeyWithValue("roles", ConsistOf(domain.RoleUser)))
	g.Expect(item).To(HaveKeyWithValue("updatedAt", BeNil()))

	// the new user can log in with its generated uuid
	w = s.do(s.api, http.MethodPost, "/api/login", map[string]string{"username": created.UUID, "password": "secret"}, "")
	g.Expect(w.Code).To(Equal(http.StatusOK))

	w = s.do(s.api, http.MethodPut, path, map[string]any{"firstName": "Amazing Grace"}, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
	s.data(w, &item)
	g.Expect(item).To(HaveKeyWithValue("firstName", "Amazing Grace"))
	g.Expect(item).To(HaveKeyWithValue("lastName", "Hopper"))
	g.Expect(item["updatedAt"]).NotTo(BeNil())

	w = s.do(s.api, http.MethodDelete, path, nil, s.token)
	g.Expect(w.Code).To(Equal(http.StatusNoContent))
	g.Expect(w.Body.Len()).To(BeZero())

	g.Expect(s.do(s.api, http.MethodGet, path, nil, s.token).Code).To(Equal(http.StatusNotFound))
	g.Expect(s.do(s.api, http.MethodDelete, path, nil, s.token).Code).To(Equal(http.StatusNotFound))
	g.Expect(s.do(s.api, http.MethodGet, "/api/users/abc", nil, s.token).Code).To(Equal(http.StatusNotFound))
}

func (s *APISuite) TestCreateUser_Rejects() {
	g := NewWithT(s.T())

	base := func() map[string]any {
		return map[string]any{"password": "secret", "firstName": "Grace", "lastName": "Hopper"}
	}

	bad := base()
	bad["zipCode"] = "7500"
	g.Expect(s.do(s.api, http.MethodPost, "/api/users", bad, s.token).Code).To(Equal(http.StatusBadRequest))

	bad = base()
	bad["uuid"] = "not-a-uuid"
	g.Expect(s.do(s.api, http.MethodPost, "/api/users", bad, s.token).Code).To(Equal(http.StatusBadRequest))

	bad = base()
	bad["birthdate"] = "09/12/1906"
	g.Expect(s.do(s.api, http.MethodPost, "/api/users", bad, s.token).Code).To(Equal(http.StatusBadRequest))

	dup := base()
	dup["uuid"] = s.user.UUID
	g.Expect(s.do(s.api, http.MethodPost, "/api/users", dup, s.token).Code).To(Equal(http.StatusConflict))
}

func (s *APISuite) TestUserCollection_PagingAndFilters() {
	g := NewWithT(s.T())
	for i := 0; i < 3; i++ {
		testutil.SeedUser(s.T(), s.db, "pw")
	}
	other := testutil.SeedUser(s.T(), s.db, "pw")
	s.Require().NoError(s.db.Model(other).Update("first_name", "Grace").Error)

	type page struct {
		List  []map[string]any `json:"list"`
		Total int64            `json:"total"`
		Page  int              `json:"page"`
		Size  int              `json:"size"`
	}

	var p page
	w := s.do(s.api, http.MethodGet, "/api/users", nil, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	s.data(w, &p)
	g.Expect(p.Total).To(BeEquivalentTo(5))
	g.Expect(p.Size).To(Equal(15))
	g.Expect(p.List).To(HaveLen(5))
	g.Expect(p.List[0]).NotTo(HaveKey("address"))

	w = s.do(s.api, http.MethodGet, "/api/users?itemsPerPage=2&page=3", nil, s.token)
	s.data(w, &p)
	g.Expect(p.Page).To(Equal(3))
	g.Expect(p.List).To(HaveLen(1))

	w = s.do(s.api, http.MethodGet, "/api/users?itemsPerPage=1000", nil, s.token)
	s.data(w, &p)
	g.Expect(p.Size).To(Equal(100))

	w = s.do(s.api, http.MethodGet, "/api/users?firstName=rac", nil, s.token)
	s.data(w, &p)
	g.Expect(p.Total).To(BeEquivalentTo(1))
	g.Expect(p.List[0]).To(HaveKeyWithValue("uuid", other.UUID))

	w = s.do(s.api, http.MethodGet, fmt.Sprintf("/api/users?id=%d", s.user.ID), nil, s.token)
	s.data(w, &p)
	g.Expect(p.Total).To(BeEquivalentTo(1))

	g.Expect(s.do(s.api, http.MethodGet, "/api/users?page=0", nil, s.token).Code).To(Equal(http.StatusBadRequest))
	// offset would not fit in 32 bits
	g.Expect(s.do(s.api, http.MethodGet, "/api/users?page=3000000000", nil, s.token).Code).To(Equal(http.StatusBadRequest))
	g.Expect(s.do(s.api, http.MethodGet, "/api/users?page=21474838&itemsPerPage=100", nil, s.token).Code).To(Equal(http.StatusBadRequest))
	g.Expect(s.do(s.api, http.MethodGet, "/api/users?page=21474837&itemsPerPage=100", nil, s.token).Code).To(Equal(http.StatusOK))
}

func (s *APISuite) TestSubscriptions() {
	g := NewWithT(s.T())
	n := testutil.SeedNewsletter(s.T(), s.db, "weekly")
	sub := fmt.Sprintf("/api/users/%d/newsletters/%d", s.user.ID, n.ID)

	for i := 0; i < 2; i++ {
		w := s.do(s.api, http.MethodPut, sub, nil, s.token)
		g.Expect(w.Code).To(Equal(http.StatusNoContent))
	}

	var me map[string]any
	w := s.do(s.api, http.MethodGet, "/api/me", nil, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	s.data(w, &me)
	g.Expect(me).To(HaveKeyWithValue("uuid", s.user.UUID))
	g.Expect(me["newsletters"]).To(HaveLen(1))

	var subs []map[string]any
	w = s.do(s.api, http.MethodGet, fmt.Sprintf("/api/newsletters/%d/subscribers", n.ID), nil, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	s.data(w, &subs)
	g.Expect(subs).To(HaveLen(1))
	g.Expect(subs[0]).To(HaveKeyWithValue("uuid", s.user.UUID))

	for i := 0; i < 2; i++ {
		w := s.do(s.api, http.MethodDelete, sub, nil, s.token)
		g.Expect(w.Code).To(Equal(http.StatusNoContent))
	}
	w = s.do(s.api, http.MethodGet, fmt.Sprintf("/api/newsletters/%d/subscribers", n.ID), nil, s.token)
	s.data(w, &subs)
	g.Expect(subs).To(BeEmpty())

	missing := fmt.Sprintf("/api/users/%d/newsletters/%d", s.user.ID, n.ID+1)
	g.Expect(s.do(s.api, http.MethodPut, missing, nil, s.token).Code).To(Equal(http.StatusNotFound))
	g.Expect(s.do(s.api, http.MethodGet, "/api/newsletters/999/subscribers", nil, s.token).Code).To(Equal(http.StatusNotFound))
}

func (s *APISuite) TestNewsletterCRUD() {
	g := NewWithT(s.T())

	w := s.do(s.api, http.MethodPost, "/api/newsletters", map[string]any{
		"name": "Daily", "subject": "News", "htmlContent": "<p>hi</p>", "type": "daily",
	}, s.token)
	g.Expect(w.Code).To(Equal(http.StatusCreated), w.Body.String())
	var n map[string]any
	s.data(w, &n)
	id := uint(n["id"].(float64))
	path := fmt.Sprintf("/api/newsletters/%d", id)

	w = s.do(s.api, http.MethodPut, path, map[string]any{
		"name": "Daily digest", "subject": "News", "htmlContent": "<p>hi</p>", "type": "daily",
	}, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK))

	w = s.do(s.api, http.MethodGet, path, nil, s.token)
	s.data(w, &n)
	g.Expect(n).To(HaveKeyWithValue("name", "Daily digest"))

	g.Expect(s.do(s.api, http.MethodPost, "/api/newsletters", map[string]any{"name": "x"}, s.token).Code).
		To(Equal(http.StatusBadRequest))

	sub := fmt.Sprintf("/api/users/%d/newsletters/%d", s.user.ID, id)
	g.Expect(s.do(s.api, http.MethodPut, sub, nil, s.token).Code).To(Equal(http.StatusNoContent))

	g.Expect(s.do(s.api, http.MethodDelete, path, nil, s.token).Code).To(Equal(http.StatusNoContent))
	g.Expect(s.do(s.api, http.MethodGet, path, nil, s.token).Code).To(Equal(http.StatusNotFound))

	rows, err := repo.NewSubscriptionRepo(s.db).ListByUser(s.T().Context(), s.user.ID)
	s.Require().NoError(err)
	g.Expect(rows).To(BeEmpty())
}

func (s *APISuite) TestDeleteUser_DetachesSubscriptions() {
	g := NewWithT(s.T())
	other := testutil.SeedUser(s.T(), s.db, "pw")
	n := testutil.SeedNewsletter(s.T(), s.db, "weekly")
	sub := fmt.Sprintf("/api/users/%d/newsletters/%d", other.ID, n.ID)
	g.Expect(s.do(s.api, http.MethodPut, sub, nil, s.token).Code).To(Equal(http.StatusNoContent))

	g.Expect(s.do(s.api, http.MethodDelete, fmt.Sprintf("/api/users/%d", other.ID), nil, s.token).Code).
		To(Equal(http.StatusNoContent))

	var subs []map[string]any
	w := s.do(s.api, http.MethodGet, fmt.Sprintf("/api/newsletters/%d/subscribers", n.ID), nil, s.token)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	s.data(w, &subs)
	g.Expect(subs).To(BeEmpty())

	// a missing user still answers 404 and removes nothing
	g.Expect(s.do(s.api, http.MethodDelete, "/api/users/999", nil, s.token).Code).To(Equal(http.StatusNotFound))
}

func (s *APISuite) TestDocs() {
	g := NewWithT(s.T())

	w := s.do(s.api, http.MethodGet, "/api/docs.json", nil, "")
	g.Expect(w.Code).To(Equal(http.StatusOK))

	var doc map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &doc))
	paths := doc["paths"].(map[string]any)
	g.Expect(paths).To(HaveKey("/api/login"))
	g.Expect(paths).To(HaveKey("/api/logout"))
	g.Expect(paths).To(HaveKey("/api/users"))
	g.Expect(paths).To(HaveKey("/api/users/{id}"))
	g.Expect(paths).To(HaveKey("/api/users/{id}/newsletters/{newsletterId}"))
	g.Expect(paths).To(HaveKey("/api/newsletters/{id}"))

	login := paths["/api/login"].(map[string]any)["post"].(map[string]any)
	g.Expect(login).To(HaveKeyWithValue("operationId", "postApiLogin"))
	g.Expect(login["tags"]).To(ConsistOf("Authentication"))
	g.Expect(login).To(HaveKey("security"))
	g.Expect(login["security"]).To(BeEmpty())

	users := paths["/api/users"].(map[string]any)
	g.Expect(users["get"]).To(HaveKeyWithValue("operationId", "getUserCollection"))
	g.Expect(users["post"]).To(HaveKeyWithValue("operationId", "postUserCollection"))

	logout := paths["/api/logout"].(map[string]any)["post"].(map[string]any)
	g.Expect(logout["security"]).To(BeEmpty())
	g.Expect(logout["responses"]).To(HaveKey("204"))

	comps := doc["components"].(map[string]any)
	g.Expect(comps["securitySchemes"]).To(HaveKey("bearerAuth"))
	g.Expect(comps["schemas"]).To(HaveKey("Credentials"))
	g.Expect(comps["schemas"]).To(HaveKey("User-read.Users"))
	g.Expect(doc["security"]).To(ConsistOf(HaveKey("bearerAuth")))

	// served bytes are stable across requests
	again := s.do(s.api, http.MethodGet, "/api/docs.json", nil, "")
	g.Expect(again.Body.String()).To(Equal(w.Body.String()))
}

func (s *APISuite) TestAdminArchive() {
	g := NewWithT(s.T())
	admin := testutil.SeedUser(s.T(), s.db, "pw", domain.RoleAdmin)
	adminTok := s.issue(admin)
	n := testutil.SeedNewsletter(s.T(), s.db, "weekly")

	path := fmt.Sprintf("/admin/v1/users/%d/archive", s.user.ID)
	g.Expect(s.do(s.admin, http.MethodPost, path, nil, "").Code).To(Equal(http.StatusUnauthorized))
	g.Expect(s.do(s.admin, http.MethodPost, path, nil, s.token).Code).To(Equal(http.StatusForbidden))

	w := s.do(s.admin, http.MethodPost, path, nil, adminTok)
	g.Expect(w.Code).To(Equal(http.StatusOK), w.Body.String())
	var out map[string]any
	s.data(w, &out)
	g.Expect(out["deletedAt"]).NotTo(BeNil())

	// deletedAt is advisory: the row stays readable
	w = s.do(s.api, http.MethodGet, fmt.Sprintf("/api/users/%d", s.user.ID), nil, adminTok)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	g.Expect(w.Body.String()).To(ContainSubstring(`"deletedAt":"`))

	w = s.do(s.admin, http.MethodPost, fmt.Sprintf("/admin/v1/newsletters/%d/archive", n.ID), nil, adminTok)
	g.Expect(w.Code).To(Equal(http.StatusOK))
	g.Expect(s.do(s.admin, http.MethodPost, "/admin/v1/newsletters/999/archive", nil, adminTok).Code).
		To(Equal(http.StatusNotFound))

	w = s.do(s.admin, http.MethodGet, "/admin/docs.json", nil, "")
	g.Expect(w.Code).To(Equal(http.StatusOK))
	g.Expect(strings.Contains(w.Body.String(), "archiveUserItem")).To(BeTrue())
}
