package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tes-agency/portal/internal/auth"
	"github.com/tes-agency/portal/internal/storage"
)

type contentBody struct {
	Content storage.PageContent `json:"content"`
}

type contentListBody struct {
	Content []storage.PageContent `json:"content"`
}

func TestPageContentHandler(t *testing.T) {
	f := newFixture(t)
	lead := f.seedUser(t, auth.RolePublicRelationsLead, "lead")

	put := func(userID, body string) *http.Response {
		rec := serve(t, f.content.Update, call{pattern: "PUT /api/page-content", method: http.MethodPut, target: "/api/page-content", body: body, userID: userID})
		return rec.Result()
	}

	resp := put(lead, `{"page":"home","section":"hero","key":"title","content":"<p>Hello</p><script>alert(1)</script>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = put(lead, `{"page":"home","section":"hero","key":"title","content":"<p>Welcome</p>"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	put(lead, `{"page":"about","section":"intro","key":"body","content":"About us"}`)

	assert.Equal(t, http.StatusUnauthorized, put("", `{"page":"home","section":"hero","key":"x","content":"y"}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, put(lead, `{"page":"home","key":"x","content":"y"}`).StatusCode)

	rec := serve(t, f.content.Entry, call{pattern: "GET /api/page-content/{page}/{key}", method: http.MethodGet, target: "/api/page-content/home/title"})
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[contentBody](t, rec).Content
	assert.Equal(t, "<p>Welcome</p>", entry.Content)
	assert.Equal(t, lead, entry.UpdatedBy)

	rec = serve(t, f.content.Entry, call{pattern: "GET /api/page-content/{page}/{key}", method: http.MethodGet, target: "/api/page-content/home/missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(t, f.content.Page, call{pattern: "GET /api/page-content/{page}", method: http.MethodGet, target: "/api/page-content/home"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[contentListBody](t, rec).Content, 1)

	rec = serve(t, f.content.Page, call{pattern: "GET /api/page-content/{page}", method: http.MethodGet, target: "/api/page-content/contact"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"content":[]}`, rec.Body.String())

	rec = serve(t, f.content.List, call{pattern: "GET /api/page-content", method: http.MethodGet, target: "/api/page-content"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[contentListBody](t, rec).Content, 2)
}

func TestPageContentHandlerStripsScript(t *testing.T) {
	f := newFixture(t)
	pr := f.seedUser(t, auth.RolePublicRelations, "pr")

	rec := serve(t, f.content.Update, call{
		pattern: "PUT /api/page-content",
		method:  http.MethodPut,
		target:  "/api/page-content",
		body:    `{"page":"home","section":"hero","key":"title","content":"<p>Hi</p><script>alert(1)</script>"}`,
		userID:  pr,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[contentBody](t, rec).Content
	assert.Contains(t, saved.Content, "<p>Hi</p>")
	assert.NotContains(t, saved.Content, "script")
}
