package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every collector of the service. It is served by the
// metrics endpoint in main.
var Registry = prometheus.NewRegistry()

var (
	// PidError is the latest error of each controller.
	PidError = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maneuver_pid_error",
			Help: "Latest error of a PID controller.",
		},
		[]string{"controller"},
	)

	// PidOutput is the latest clamped output of each controller.
	PidOutput = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maneuver_pid_output",
			Help: "Latest clamped output of a PID controller.",
		},
		[]string{"controller"},
	)

	// PidOnTarget is 1 while a controller reports on target.
	PidOnTarget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "maneuver_pid_on_target",
			Help: "Whether a PID controller is on target (1) or not (0).",
		},
		[]string{"controller"},
	)

	// CommandRuns counts finished runs by test and result.
	CommandRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maneuver_command_runs_total",
			Help: "Total number of maneuver runs by test and result.",
		},
		[]string{"test", "result"}, // result: done/aborted
	)

	// DriveTimeouts counts drive operations aborted by their timeout.
	DriveTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maneuver_drive_timeouts_total",
			Help: "Total number of drive operations that timed out.",
		},
		[]string{"drive"},
	)

	// StuckWheelAlerts counts wheels flagged by the motors diagnostic.
	StuckWheelAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "maneuver_stuck_wheel_alerts_total",
			Help: "Total number of stuck wheel alerts.",
		},
		[]string{"wheel"},
	)

	// TickDuration measures the work done per control tick.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "maneuver_tick_duration_seconds",
			Help:    "Time spent in one control tick.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
		},
	)

	// BatteryVoltage is the latest supply voltage.
	BatteryVoltage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "maneuver_battery_voltage",
			Help: "Latest battery voltage.",
		},
	)
)

func init() {
	Registry.MustRegister(PidError)
	Registry.MustRegister(PidOutput)
	Registry.MustRegister(PidOnTarget)
	Registry.MustRegister(CommandRuns)
	Registry.MustRegister(DriveTimeouts)
	Registry.MustRegister(StuckWheelAlerts)
	Registry.MustRegister(TickDuration)
	Registry.MustRegister(BatteryVoltage)
}

// ObservePid records the latest state of one controller.
func ObservePid(controller string, err, output float64, onTarget bool) {
	PidError.WithLabelValues(controller).Set(err)
	PidOutput.WithLabelValues(controller).Set(output)
	v := 0.0
	if onTarget {
		v = 1
	}
	PidOnTarget.WithLabelValues(controller).Set(v)
}
