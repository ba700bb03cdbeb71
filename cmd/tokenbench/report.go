package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	goToken "github.com/MrEthical07/goToken"
	"github.com/MrEthical07/goToken/metrics/export/otel"
	"github.com/MrEthical07/goToken/metrics/export/prometheus"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// writeReport prints the engine counters after a run in the requested format:
// summary, prometheus (text exposition) or otel (one line per data point, as
// collected through an SDK reader).
func writeReport(w io.Writer, format string, engine *goToken.Engine) error {
	switch format {
	case "", "summary":
		snap := engine.MetricsSnapshot()
		var rejected uint64
		for _, id := range []goToken.MetricID{
			goToken.MetricRejectInvalidToken,
			goToken.MetricRejectAudience,
			goToken.MetricRejectIssuer,
			goToken.MetricRejectExpired,
			goToken.MetricRejectIP,
		} {
			rejected += snap.Counters[id]
		}
		_, err := fmt.Fprintf(w, "engine: issued=%d validated=%d rejected=%d rate_limited=%d\n",
			snap.Counters[goToken.MetricIssueSuccess],
			snap.Counters[goToken.MetricValidateSuccess],
			rejected,
			snap.Counters[goToken.MetricIssueRateLimited],
		)
		return err
	case "prometheus":
		_, err := io.WriteString(w, prometheus.NewPrometheusExporter(engine).Render())
		return err
	case "otel":
		return writeOTel(w, engine)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

func writeOTel(w io.Writer, engine *goToken.Engine) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	exp, err := otel.NewOTelExporter(provider.Meter("tokenbench"), engine)
	if err != nil {
		return err
	}
	defer func() { _ = exp.Close() }()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		return err
	}

	var lines []string
	emit := func(name, attrs string, v int64) {
		if attrs != "" {
			name += "{" + attrs + "}"
		}
		lines = append(lines, fmt.Sprintf("%s %d", name, v))
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					emit(m.Name, attrString(dp.Attributes.ToSlice()), dp.Value)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					emit(m.Name, attrString(dp.Attributes.ToSlice()), dp.Value)
				}
			}
		}
	}
	sort.Strings(lines)

	_, err = io.WriteString(w, strings.Join(lines, "\n")+"\n")
	return err
}

func attrString(kvs []attribute.KeyValue) string {
	parts := make([]string, 0, len(kvs))
	for _, kv := range kvs {
		parts = append(parts, string(kv.Key)+"="+kv.Value.Emit())
	}
	return strings.Join(parts, ",")
}
