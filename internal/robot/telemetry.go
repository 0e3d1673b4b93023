package robot

import (
	"time"

	"maneuver-service/internal/metrics"
	"maneuver-service/internal/pid"
)

// Display writes one dashboard line. Without a dashboard it does nothing.
func (r *Robot) Display(line int, format string, args ...interface{}) {
	if r.Dashboard == nil {
		return
	}
	r.Dashboard.DisplayPrintf(line, format, args...)
}

// DisplayPidInfo renders a controller on two dashboard lines starting at
// line.
func (r *Robot) DisplayPidInfo(line int, c *pid.Controller) {
	if c == nil {
		return
	}
	r.Display(line, "%s: tgt=%.1f,in=%.1f", c.Name(), c.Target(), c.ProcessVariable())
	r.Display(line+1, "err=%.1f,out=%.2f,onTarget=%t", c.Error(), c.Output(), c.OnTarget())
}

// TracePid writes one trace record for a controller and updates its
// metrics. elapsed is the time since the run started.
func (r *Robot) TracePid(elapsed time.Duration, c *pid.Controller) {
	if c == nil {
		return
	}
	r.tracer.Infof("[%8.3f] PID %s", elapsed.Seconds(), c)
	metrics.ObservePid(c.Name(), c.Error(), c.Output(), c.OnTarget())
}

// TraceBattery writes the current and lowest battery voltage.
func (r *Robot) TraceBattery(elapsed time.Duration) {
	if r.devices.Battery == nil {
		return
	}
	r.tracer.Infof("[%8.3f] Battery: Voltage=%5.2fV (%5.2fV)", elapsed.Seconds(), r.sample.Voltage, r.sample.LowestVoltage)
	metrics.BatteryVoltage.Set(r.sample.Voltage)
}

// Speak queues a sentence on the speaker and reports whether one is
// fitted.
func (r *Robot) Speak(sentence string) bool {
	if r.Speaker == nil {
		return false
	}
	if err := r.Speaker.Speak(sentence); err != nil {
		r.logger.Warnf("Failed to speak %q: %v", sentence, err)
	}
	return true
}

// ReportDrive logs how a finished drive operation ended.
func (r *Robot) ReportDrive(d *pid.Drive) {
	if d == nil {
		return
	}
	if d.TimedOut() {
		r.logger.Warnf("%s timed out on %s", d.Name(), d.Armed())
		metrics.DriveTimeouts.WithLabelValues(d.Name()).Inc()
		return
	}
	r.logger.Infof("%s reached target on %s", d.Name(), d.Armed())
}
