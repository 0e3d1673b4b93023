package hardware

import (
	"fmt"
	"os"
	"strings"
)

var iioRoot = "/sys/bus/iio/devices"

func ReadAdcValue(device string, channel int) (int, error) {
	path := fmt.Sprintf("%s/%s/in_voltage%d_raw", iioRoot, device, channel)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return -1, fmt.Errorf("ADC sysfs not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return -1, fmt.Errorf("failed reading %s: %w", path, err)
	}

	var value int
	_, err = fmt.Sscanf(strings.TrimSpace(string(data)), "%d", &value)
	if err != nil {
		return -1, fmt.Errorf("failed parsing ADC value: %w", err)
	}

	return value, nil
}

func clampPower(p float64) float64 {
	if p > 1 {
		return 1
	}
	if p < -1 {
		return -1
	}
	return p
}
