package exporters

import (
	"context"
	"strings"
	"time"

	"jornada/pkg/config"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
)

const dialTimeout = 10 * time.Second

// HttpOptions turns OTEL.ADDR into exporter options. A bare host:port is sent
// in plaintext; a full URL keeps its scheme and path.
func HttpOptions(addr string) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{
		otlptracehttp.WithCompression(otlptracehttp.GzipCompression),
	}

	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return append(opts, otlptracehttp.WithEndpointURL(addr))
	}
	return append(opts, otlptracehttp.WithEndpoint(addr), otlptracehttp.WithInsecure())
}

func ProvideHttp(cfg *config.Config) (*otlptrace.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	return otlptrace.New(ctx, otlptracehttp.NewClient(HttpOptions(cfg.Otel.Addr)...))
}
