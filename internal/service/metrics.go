package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Результаты операций для метки result.
const (
	resultOK            = "ok"
	resultNotFound      = "not_found"
	resultExpired       = "expired"
	resultInvalid       = "invalid"
	resultNotConfigured = "not_configured"
	resultError         = "error"
)

var (
	// operationsTotal — операции загрузки и получения по результату.
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fs_operations_total",
		Help: "Количество операций сервиса по типу и результату",
	}, []string{"operation", "result"})

	// uploadBytesTotal — объём успешно загруженных данных.
	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fs_upload_bytes_total",
		Help: "Общий объём загруженных данных в байтах",
	})
)

func countOp(operation, result string) {
	operationsTotal.WithLabelValues(operation, result).Inc()
}
