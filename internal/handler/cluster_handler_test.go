package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"corpus-dedup/internal/model"
	"corpus-dedup/internal/service"
	"corpus-dedup/pkg/lock"
	"corpus-dedup/pkg/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubReview struct {
	rejected map[uint]string
}

func (s *stubReview) GetClusterInfo(_ context.Context, id uint) (*service.ClusterInfo, error) {
	if id != 1 {
		return nil, fmt.Errorf("%w: cluster %d", service.ErrNotFound, id)
	}
	return &service.ClusterInfo{ID: 1, ClusterType: model.ClusterTypeExact, ReviewStatus: model.ReviewStatusPending}, nil
}

func (s *stubReview) ListClusters(_ context.Context, status string, _ int) ([]model.DuplicateCluster, error) {
	if status == "bogus" {
		return nil, fmt.Errorf("%w: unknown review status", service.ErrValidation)
	}
	return []model.DuplicateCluster{{ID: 1, ReviewStatus: model.ReviewStatusPending}}, nil
}

func (s *stubReview) RejectCluster(_ context.Context, id uint, notes string) error {
	s.rejected[id] = notes
	return nil
}

func (s *stubReview) Stats(context.Context) (map[string]int64, error) {
	return map[string]int64{model.ReviewStatusPending: 1}, nil
}

type stubMerge struct {
	notes string
}

func (s *stubMerge) MergeCluster(_ context.Context, clusterID, keepID uint, removeIDs []uint, notes string) (*service.MergeResult, error) {
	for _, id := range removeIDs {
		if id == keepID {
			return nil, fmt.Errorf("%w: keep in remove", service.ErrValidation)
		}
	}
	s.notes = notes
	return &service.MergeResult{ClusterID: clusterID, KeepID: keepID, RemovedIDs: removeIDs, TagsAdded: 2}, nil
}

func (s *stubMerge) AutoMergeHighConfidence(_ context.Context, threshold float64) (*service.AutoMergeSummary, error) {
	return &service.AutoMergeSummary{Threshold: threshold}, nil
}

type routerFixture struct {
	router *gin.Engine
	jwt    *token.JWTManager
	review *stubReview
	merge  *stubMerge
}

func newRouterFixture() *routerFixture {
	gin.SetMode(gin.TestMode)
	f := &routerFixture{
		jwt:    token.NewJWTManager("test-secret", 1),
		review: &stubReview{rejected: map[uint]string{}},
		merge:  &stubMerge{},
	}
	f.router = NewRouter(NewClusterHandler(f.review, f.merge), f.jwt)
	return f
}

func (f *routerFixture) do(t *testing.T, method, path, role string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		tok, err := f.jwt.GenerateToken("alice", role)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestRouter_RequiresToken(t *testing.T) {
	f := newRouterFixture()
	w := f.do(t, http.MethodGet, "/api/v1/clusters", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListClusters(t *testing.T) {
	f := newRouterFixture()

	w := f.do(t, http.MethodGet, "/api/v1/clusters?status=pending&limit=5", token.RoleViewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/clusters?status=bogus", token.RoleViewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, "/api/v1/clusters?limit=many", token.RoleViewer, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCluster(t *testing.T) {
	f := newRouterFixture()

	w := f.do(t, http.MethodGet, "/api/v1/clusters/1", token.RoleViewer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Code int                    `json:"code"`
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp.Data["id"])
	assert.Equal(t, "0001-01-01 00:00:00", resp.Data["createdAt"])

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/v1/clusters/2", token.RoleViewer, nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/v1/clusters/abc", token.RoleViewer, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/v1/clusters/stats", token.RoleViewer, nil).Code)
}

func TestMergeCluster_RequiresReviewerRole(t *testing.T) {
	f := newRouterFixture()
	body := MergeRequest{KeepID: 10, RemoveIDs: []uint{20}}

	w := f.do(t, http.MethodPost, "/api/v1/clusters/1/merge", token.RoleViewer, body)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clusters/1/merge", token.RoleReviewer, MergeRequest{KeepID: 10, RemoveIDs: []uint{20}, Notes: "same scan"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[alice] same scan", f.merge.notes)
}

func TestMergeCluster_BadRequests(t *testing.T) {
	f := newRouterFixture()

	w := f.do(t, http.MethodPost, "/api/v1/clusters/1/merge", token.RoleReviewer, map[string]interface{}{"keepId": 10})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clusters/1/merge", token.RoleReviewer, MergeRequest{KeepID: 10, RemoveIDs: []uint{10}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRejectCluster(t *testing.T) {
	f := newRouterFixture()

	w := f.do(t, http.MethodPost, "/api/v1/clusters/1/reject", token.RoleReviewer, RejectRequest{Notes: "different works"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[alice] different works", f.review.rejected[1])

	w = f.do(t, http.MethodPost, "/api/v1/clusters/3/reject", token.RoleReviewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[alice]", f.review.rejected[3])
}

func TestAutoMerge(t *testing.T) {
	f := newRouterFixture()

	w := f.do(t, http.MethodPost, "/api/v1/clusters/auto-merge", token.RoleReviewer, map[string]interface{}{"threshold": 0.95})
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, "/api/v1/clusters/auto-merge", token.RoleReviewer, map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: bad", service.ErrValidation), http.StatusBadRequest},
		{fmt.Errorf("%w: cluster 9", service.ErrNotFound), http.StatusNotFound},
		{lock.ErrJobRunning, http.StatusConflict},
		{fmt.Errorf("%w: db down", service.ErrPersistence), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusOf(tc.err), tc.err.Error())
	}
}
