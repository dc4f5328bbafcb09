package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dmitrijs2005/brainbox/internal/metrics"
	"github.com/dustin/go-humanize"
	dto "github.com/prometheus/client_model/go"
)

// Stats prints the counters gathered since the program started.
func (a *App) Stats(ctx context.Context) error {
	families, err := a.gatherer.Gather()
	if err != nil {
		return err
	}

	var lines []string
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "brainbox_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			lines = append(lines, formatMetric(mf.GetName(), m))
		}
	}
	if len(lines) == 0 {
		printlnFn(a.out, "No activity yet")
		return nil
	}
	sort.Strings(lines)
	for _, l := range lines {
		printlnFn(a.out, l)
	}
	return nil
}

func formatMetric(name string, m *dto.Metric) string {
	var labels []string
	for _, lp := range m.GetLabel() {
		labels = append(labels, lp.GetName()+"="+lp.GetValue())
	}
	if len(labels) > 0 {
		name += "{" + strings.Join(labels, ",") + "}"
	}

	switch {
	case name == metrics.ImageBytesKey:
		return fmt.Sprintf("%-60s %s", name, humanize.Bytes(uint64(m.GetGauge().GetValue())))
	case m.GetCounter() != nil:
		return fmt.Sprintf("%-60s %s", name, humanize.Comma(int64(m.GetCounter().GetValue())))
	default:
		return fmt.Sprintf("%-60s %g", name, m.GetGauge().GetValue())
	}
}
