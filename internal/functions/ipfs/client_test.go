package ipfs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/database"
	"mosaic-functions/internal/common/errors"
	"mosaic-functions/internal/common/logger"
)

const (
	submissionHash = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"
	reportHash     = "QmT78zSuBmuS4z925WZfrqQ1qHaJ56DQaTfyMUF7F8ff5o"
	submissionBody = `{"title":"Le Rêve","artist":"Pablo Picasso","ownerName":"Jane Collector"}`
)

func gateway(t *testing.T, hits *int32, docs map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		body, ok := docs[r.URL.Path[len("/ipfs/"):]]
		if !ok {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestValidateContentHash(t *testing.T) {
	assert.NoError(t, ValidateContentHash(submissionHash))
	assert.NoError(t, ValidateContentHash("bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"))

	for _, bad := range []string{"", "Qm123", "../etc/passwd", submissionHash + "/x", "QmOIl0" + submissionHash[6:]} {
		assert.Error(t, ValidateContentHash(bad), bad)
	}
}

func TestFetch_WithoutCache(t *testing.T) {
	var hits int32
	server := gateway(t, &hits, map[string]string{submissionHash: submissionBody})

	c := NewClient(Config{BaseURL: server.URL + "/ipfs/", Timeout: time.Second}, nil, logger.NewTestLogger(t))
	assert.Equal(t, server.URL+"/ipfs/"+submissionHash, c.URL(submissionHash))

	doc, err := c.Fetch(context.Background(), submissionHash)
	require.NoError(t, err)
	assert.JSONEq(t, submissionBody, string(doc))
}

func TestFetch_Errors(t *testing.T) {
	var hits int32
	server := gateway(t, &hits, map[string]string{reportHash: "<html>not json</html>"})
	c := NewClient(Config{BaseURL: server.URL + "/ipfs", Timeout: time.Second}, nil, nil)

	tests := []struct {
		name     string
		hash     string
		wantCode errors.ErrorCode
	}{
		{name: "invalid hash", hash: "not-a-cid", wantCode: errors.ErrCodeValidationFailed},
		{name: "gateway 404", hash: submissionHash, wantCode: errors.ErrCodeIPFSFetchFailed},
		{name: "non-json body", hash: reportHash, wantCode: errors.ErrCodeIPFSFetchFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Fetch(context.Background(), tt.hash)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.AsStandardError(err).Code)
		})
	}
}

func TestFetch_ServesRepeatsFromCache(t *testing.T) {
	var hits int32
	server := gateway(t, &hits, map[string]string{submissionHash: submissionBody})

	mr := miniredis.RunT(t)
	cache, err := database.NewRedis(config.RedisConfig{Enabled: true, Address: mr.Addr()})
	require.NoError(t, err)
	defer cache.Close()

	c := NewClient(Config{BaseURL: server.URL + "/ipfs", Timeout: time.Second, CacheTTL: time.Hour}, cache, logger.NewTestLogger(t))

	for i := 0; i < 3; i++ {
		doc, err := c.Fetch(context.Background(), submissionHash)
		require.NoError(t, err)
		assert.JSONEq(t, submissionBody, string(doc))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.True(t, mr.Exists("mosaic:ipfs:"+submissionHash))
	assert.Equal(t, time.Hour, mr.TTL("mosaic:ipfs:"+submissionHash))
}

func TestFetch_CacheFailuresAreIgnored(t *testing.T) {
	var hits int32
	server := gateway(t, &hits, map[string]string{submissionHash: submissionBody})

	redisClient, redisMock := redismock.NewClientMock()
	cache := database.NewRedisFromClient(redisClient)
	key := cache.Key("ipfs", submissionHash)

	redisMock.ExpectGet(key).SetErr(fmt.Errorf("READONLY You can't write against a read only replica"))
	cached, _ := json.Marshal(json.RawMessage(submissionBody))
	redisMock.ExpectSet(key, cached, 10*time.Minute).SetErr(fmt.Errorf("READONLY"))

	c := NewClient(Config{BaseURL: server.URL + "/ipfs", Timeout: time.Second, CacheTTL: 10 * time.Minute}, cache, logger.NewTestLogger(t))

	doc, err := c.Fetch(context.Background(), submissionHash)
	require.NoError(t, err)
	assert.JSONEq(t, submissionBody, string(doc))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.NoError(t, redisMock.ExpectationsWereMet())
}
