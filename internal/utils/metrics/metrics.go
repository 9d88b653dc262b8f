// Package metrics registers the Prometheus instruments for the MFA service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by method, path and status.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_service_requests_total",
		Help: "The total number of HTTP requests",
	}, []string{"method", "path", "status"})

	// RequestDuration observes HTTP request latency.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mfa_service_request_duration_seconds",
		Help:    "The HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	// VerificationAttemptsTotal counts verification outcomes by method type.
	VerificationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_service_verification_attempts_total",
		Help: "The total number of MFA verification attempts",
	}, []string{"method", "status"})

	// EnrollmentsTotal counts method enrollments by type and phase.
	EnrollmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_service_enrollments_total",
		Help: "The total number of MFA method enrollments",
	}, []string{"method", "phase"})

	// LockoutsTotal counts users locked out after repeated failures.
	LockoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfa_service_lockouts_total",
		Help: "The total number of verification lockouts",
	})

	// CodesIssuedTotal counts channel codes issued by purpose.
	CodesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mfa_service_codes_issued_total",
		Help: "The total number of channel verification codes issued",
	}, []string{"purpose"})

	// BackupCodesConsumedTotal counts backup codes consumed.
	BackupCodesConsumedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfa_service_backup_codes_consumed_total",
		Help: "The total number of backup codes consumed",
	})

	// TrustedDevicesMintedTotal counts devices granted trust.
	TrustedDevicesMintedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfa_service_trusted_devices_minted_total",
		Help: "The total number of devices granted trust",
	})

	// ExpiredCodesReapedTotal counts rows removed by the expiry sweep.
	ExpiredCodesReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mfa_service_expired_codes_reaped_total",
		Help: "The total number of expired verification codes deleted",
	})
)
