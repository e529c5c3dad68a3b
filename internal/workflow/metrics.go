package workflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_scans_total",
		Help: "Scan attempts by outcome.",
	}, []string{"result"})

	submissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_submissions_total",
		Help: "Attendance submissions by outcome.",
	}, []string{"result"})

	generatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkin_qr_generated_total",
		Help: "QR codes generated by the teacher flow.",
	})

	annotationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkin_annotations_total",
		Help: "Annotation jobs by outcome.",
	}, []string{"result"})
)
