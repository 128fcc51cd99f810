package storage

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-job-service/internal/apperr"
	"media-job-service/internal/config"
	"media-job-service/internal/entity"
)

func newTestAuthority(t *testing.T) *Authority {
	t.Helper()
	a, err := NewAuthority(config.StorageConfig{
		Bucket:    "uploads",
		Endpoint:  "localhost:9000",
		AccessKey: "test-access",
		SecretKey: "test-secret",
		Region:    "us-east-1",
		UseSSL:    false,
	})
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2026, 10, 17, 10, 15, 0, 0, time.UTC) }
	return a
}

func TestAuthority_IssueUploadGrant_BindsMethodKeyTypeAndTTL(t *testing.T) {
	a := newTestAuthority(t)

	grant, err := a.IssueUploadGrant(context.Background(), entity.GrantRequest{
		ObjectKey:   "17102026_101500_abc_video.mp4",
		ContentType: "video/mp4",
		Method:      "put",
		TTL:         entity.UploadGrantTTL,
	})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, grant.Method)
	assert.Equal(t, "video/mp4", grant.ContentType)
	assert.Equal(t, time.Date(2026, 10, 17, 10, 30, 0, 0, time.UTC), grant.ExpiresAt)

	u, err := url.Parse(grant.URL)
	require.NoError(t, err)
	assert.Equal(t, "localhost:9000", u.Host)
	assert.Equal(t, "/uploads/17102026_101500_abc_video.mp4", u.Path)

	q := u.Query()
	assert.Equal(t, "900", q.Get("X-Amz-Expires"))
	assert.Equal(t, "AWS4-HMAC-SHA256", q.Get("X-Amz-Algorithm"))
	assert.Contains(t, strings.Split(q.Get("X-Amz-SignedHeaders"), ";"), "content-type")
	assert.True(t, strings.HasPrefix(q.Get("X-Amz-Credential"), "test-access/"))
	assert.NotEmpty(t, q.Get("X-Amz-Signature"))
	assert.NotContains(t, grant.URL, "test-secret")
}

func TestAuthority_IssueUploadGrant_DifferentContentTypeChangesSignature(t *testing.T) {
	a := newTestAuthority(t)
	req := entity.GrantRequest{ObjectKey: "k.mp4", ContentType: "video/mp4", Method: http.MethodPut, TTL: time.Minute}

	g1, err := a.IssueUploadGrant(context.Background(), req)
	require.NoError(t, err)

	req.ContentType = "video/webm"
	g2, err := a.IssueUploadGrant(context.Background(), req)
	require.NoError(t, err)

	u1, _ := url.Parse(g1.URL)
	u2, _ := url.Parse(g2.URL)
	assert.NotEqual(t, u1.Query().Get("X-Amz-Signature"), u2.Query().Get("X-Amz-Signature"))
}

func TestAuthority_IssueUploadGrant_RejectsBadRequests(t *testing.T) {
	a := newTestAuthority(t)
	base := entity.GrantRequest{ObjectKey: "k", ContentType: "video/mp4", Method: http.MethodPut, TTL: time.Minute}

	cases := map[string]func(r *entity.GrantRequest){
		"empty key":          func(r *entity.GrantRequest) { r.ObjectKey = "" },
		"empty content type": func(r *entity.GrantRequest) { r.ContentType = "" },
		"get method":         func(r *entity.GrantRequest) { r.Method = http.MethodGet },
		"zero ttl":           func(r *entity.GrantRequest) { r.TTL = 0 },
		"ttl too long":       func(r *entity.GrantRequest) { r.TTL = 8 * 24 * time.Hour },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := a.IssueUploadGrant(context.Background(), req)
			require.Error(t, err)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestAuthority_IssueUploadGrant_CanceledContext(t *testing.T) {
	a := newTestAuthority(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.IssueUploadGrant(ctx, entity.GrantRequest{
		ObjectKey: "k", ContentType: "video/mp4", Method: http.MethodPut, TTL: time.Minute,
	})
	require.Error(t, err)
	assert.True(t, apperr.IsAuthority(err))
}
