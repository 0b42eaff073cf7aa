package config

import (
	"fmt"

	"github.com/voltgrid/csms/core/metrics"
)

func setMetricsDefaults(c *metrics.Config) {
	if c.PrometheusEnabled && c.PrometheusPort == "" {
		c.PrometheusPort = "2112"
	}
}

func validateMetrics(c metrics.Config) error {
	if c.InfluxEnabled {
		if c.InfluxURL == "" {
			return fmt.Errorf("influx_url is required when influx is enabled")
		}
		if c.InfluxOrg == "" || c.InfluxBucket == "" {
			return fmt.Errorf("influx_org and influx_bucket are required when influx is enabled")
		}
	}
	return nil
}
