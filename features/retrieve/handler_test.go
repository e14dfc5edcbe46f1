package retrieve

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveHandler(t *testing.T) {
	t.Run("should answer a retrieval request", func(t *testing.T) {
		handler := NewHandler(newTestService(t, &countingEmbedder{}))

		payload, err := json.Marshal(map[string]interface{}{
			"query": "cosa copre la polizza auto",
			"files": legalFiles(),
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewReader(payload))
		rec := httptest.NewRecorder()

		handler.Retrieve(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Results)
		assert.Equal(t, len(resp.Results), resp.K)
	})

	t.Run("should reject a missing query", func(t *testing.T) {
		handler := NewHandler(newTestService(t, &countingEmbedder{}))

		req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewBufferString(`{"files":[]}`))
		rec := httptest.NewRecorder()

		handler.Retrieve(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("should reject malformed json", func(t *testing.T) {
		handler := NewHandler(newTestService(t, &countingEmbedder{}))

		req := httptest.NewRequest(http.MethodPost, "/retrieve", bytes.NewBufferString(`{`))
		rec := httptest.NewRecorder()

		handler.Retrieve(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
