package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagesUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_images_uploaded_total",
		Help: "Total number of successfully uploaded images.",
	})
	imagesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_images_deleted_total",
		Help: "Total number of soft-deleted images.",
	})
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "imagevault_upload_bytes_total",
		Help: "Total bytes of accepted image uploads.",
	})
)
