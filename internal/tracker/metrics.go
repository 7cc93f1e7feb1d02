package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"sheettrack/internal/sheet"
	"sheettrack/internal/storage"
)

var (
	refreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sheettrack_refresh_total",
		Help: "Finished tracker refreshes by outcome",
	}, []string{"outcome"})

	refreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sheettrack_refresh_duration_seconds",
		Help:    "Time from refresh start to stored insight",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
	})

	rowsSummarized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheettrack_rows_summarized_total",
		Help: "Rows handed to the summarizer",
	})

	recordsAdded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheettrack_records_added_total",
		Help: "Rows appended to the log",
	})

	persistErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sheettrack_persist_errors_total",
		Help: "Failed writes of the log or watermark",
	})

	logSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sheettrack_log_records",
		Help: "Rows in the log",
	})

	watermarkGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sheettrack_watermark",
		Help: "Rows considered processed",
	})

	pendingRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sheettrack_new_records",
		Help: "Rows past the watermark",
	})
)

func recordGauges(st sheet.State) {
	logSize.Set(float64(len(st.Log)))
	watermarkGauge.Set(float64(st.Watermark))
	pendingRows.Set(float64(len(st.Log) - st.Watermark))
}

func observeRun(run storage.Run) {
	outcome := "ok"
	switch {
	case run.Failed:
		outcome = "failed"
	case run.NewRecords == 0:
		outcome = "empty"
	}
	refreshTotal.WithLabelValues(outcome).Inc()
	refreshDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	rowsSummarized.Add(float64(run.NewRecords))
}
