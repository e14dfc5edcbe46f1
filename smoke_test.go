package main

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"docforge/internal/app"
	"docforge/internal/config"
)

func TestSmoke_Startup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping smoke test in short mode")
	}

	const port = 18082
	cfg := &config.Config{
		ServerPort:         port,
		MaxUploadSizeMB:    200,
		ContextDir:         t.TempDir(),
		QueryLogPath:       t.TempDir() + "/query.log",
		EmbeddingsProvider: "openai",
		EmbeddingsURL:      "http://localhost:5002/v1/embeddings",
		EmbeddingsModel:    "test-model",
		CacheTTLSeconds:    3600,
		CacheCapacity:      8,
		OCRDPI:             300,
		OCRWorkers:         1,
		CancelCheckStride:  1,
		StreamThresholdMB:  10,
		JobGraceSeconds:    60,
	}
	require.NoError(t, cfg.Validate())

	a, err := app.New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := a.Run(ctx); err != nil {
			t.Logf("app run exited: %v", err)
		}
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 500*time.Millisecond)
}
