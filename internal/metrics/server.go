package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iabetor/voxout/internal/logger"
)

const readHeaderTimeout = 5 * time.Second

// Handler 返回 /metrics 和 /health 的路由。
func Handler(g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Serve 在后台监听 addr，调用方负责 Shutdown。
func Serve(addr string, g prometheus.Gatherer) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(g),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	go func() {
		logger.Infof("[metrics] 指标服务监听 %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warnf("[metrics] 指标服务退出: %v", err)
		}
	}()
	return srv
}
