package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "powerimage"

var (
	ImagesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "images_uploaded_total",
		Help:      "Images accepted by the upload endpoint.",
	})

	LinksCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "links_created_total",
		Help:      "Expiring links persisted.",
	})

	MarkerSoftFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_marker_soft_failures_total",
		Help:      "Links persisted whose validity marker could not be written.",
	})

	LinkResolutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "link_resolutions_total",
		Help:      "Expiring link resolutions by outcome.",
	}, []string{"state"})
)
