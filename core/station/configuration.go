package station

import (
	"strconv"
	"strings"

	"github.com/kilianp07/csim/core/model"
)

// Standard OCPP 1.6 configuration keys served by the station.
const (
	KeyHeartbeatInterval        = "HeartbeatInterval"
	KeyMeterValueSampleInterval = "MeterValueSampleInterval"
	KeyNumberOfConnectors       = "NumberOfConnectors"
	KeySupportedFeatureProfiles = "SupportedFeatureProfiles"
	KeyAuthorizeRemoteTxReqs    = "AuthorizeRemoteTxRequests"
	KeyConnectionTimeOut        = "ConnectionTimeOut"
)

// Configuration is the station's OCPP configuration-key store, seeded from
// the template at boot.
type Configuration struct {
	values   map[string]string
	readonly map[string]bool
}

// NewConfiguration seeds the store from the template.
func NewConfiguration(tmpl *model.Template) *Configuration {
	profiles := make([]string, len(tmpl.FeatureProfiles))
	copy(profiles, tmpl.FeatureProfiles)
	c := &Configuration{
		values: map[string]string{
			KeyHeartbeatInterval:        strconv.Itoa(tmpl.HeartbeatIntervalSeconds),
			KeyMeterValueSampleInterval: strconv.Itoa(tmpl.MeterValueSampleIntervalSeconds),
			KeyNumberOfConnectors:       strconv.Itoa(tmpl.NumberOfConnectors),
			KeySupportedFeatureProfiles: strings.Join(profiles, ","),
			KeyAuthorizeRemoteTxReqs:    strconv.FormatBool(tmpl.AuthorizeRemoteTxRequests),
			KeyConnectionTimeOut:        "60",
		},
		readonly: map[string]bool{
			KeyNumberOfConnectors:       true,
			KeySupportedFeatureProfiles: true,
		},
	}
	return c
}

// Get returns the value and whether the key exists.
func (c *Configuration) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Readonly reports whether the key rejects ChangeConfiguration.
func (c *Configuration) Readonly(key string) bool { return c.readonly[key] }

// Set updates a known, writable key. It reports false for unknown keys and
// leaves readonly keys untouched.
func (c *Configuration) Set(key, value string) bool {
	if _, ok := c.values[key]; !ok || c.readonly[key] {
		return false
	}
	c.values[key] = value
	return true
}

// Keys returns all known keys in no particular order.
func (c *Configuration) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	return keys
}
