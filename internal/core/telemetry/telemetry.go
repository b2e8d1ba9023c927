// Package telemetry grades device and connectivity signals into a
// response constraint: a critical battery or no connectivity caps
// output harder than a user who is merely walking. The grade maps to
// a token ceiling and concrete formatting guidance for the model.
package telemetry

import (
	"fmt"
	"strings"
	"time"
)

// ConnectionType is the reported network transport
type ConnectionType string

const (
	ConnWifi     ConnectionType = "wifi"
	Conn5G       ConnectionType = "5g"
	Conn4G       ConnectionType = "4g"
	Conn3G       ConnectionType = "3g"
	ConnEthernet ConnectionType = "ethernet"
	ConnOffline  ConnectionType = "offline"
	ConnUnknown  ConnectionType = "unknown"
)

// BatteryState is the reported charging state
type BatteryState string

const (
	BatteryCharging    BatteryState = "charging"
	BatteryDischarging BatteryState = "discharging"
	BatteryFull        BatteryState = "full"
	BatteryNotCharging BatteryState = "not_charging"
	BatteryUnknown     BatteryState = "unknown"
)

// KineticState is how the user is moving
type KineticState string

const (
	KineticStationary KineticState = "stationary"
	KineticWalking    KineticState = "walking"
	KineticRunning    KineticState = "running"
	KineticCycling    KineticState = "cycling"
	KineticDriving    KineticState = "driving"
	KineticInTransit  KineticState = "in_transit"
	KineticUnknown    KineticState = "unknown"
)

// DeviceType is the reported hardware class
type DeviceType string

const (
	DeviceSmartphone DeviceType = "smartphone"
	DeviceTablet     DeviceType = "tablet"
	DeviceLaptop     DeviceType = "laptop"
	DeviceDesktop    DeviceType = "desktop"
	DeviceWearable   DeviceType = "wearable"
	DeviceIoT        DeviceType = "iot"
	DeviceUnknown    DeviceType = "unknown"
)

// Thresholds for constraint grading
const (
	BatteryLowLevel      = 0.2
	BatteryCriticalLevel = 0.1
	HighSpeedMPS         = 10.0
	SlowBandwidthMbps    = 1.0
)

// Battery is a battery reading; Level is 0..1
type Battery struct {
	Level float64      `json:"level"`
	State BatteryState `json:"state"`
}

// Low is under twenty percent
func (b Battery) Low() bool { return b.Level < BatteryLowLevel }

// Critical is under ten percent
func (b Battery) Critical() bool { return b.Level < BatteryCriticalLevel }

// Network is a connectivity reading
type Network struct {
	Type          ConnectionType `json:"type"`
	Metered       bool           `json:"metered"`
	BandwidthMbps float64        `json:"bandwidth_mbps"`
}

// Constrained covers slow transports, metered plans and thin pipes
func (n Network) Constrained() bool {
	if n.Type == Conn3G || n.Type == ConnOffline || n.Metered {
		return true
	}
	return n.BandwidthMbps > 0 && n.BandwidthMbps < SlowBandwidthMbps
}

// Motion is a movement reading
type Motion struct {
	State    KineticState `json:"state"`
	SpeedMPS float64      `json:"speed_mps"`
}

// HighSpeed means vehicle-grade movement
func (m Motion) HighSpeed() bool { return m.SpeedMPS > HighSpeedMPS }

// Moving is any known non-stationary state
func (m Motion) Moving() bool {
	return m.State != KineticStationary && m.State != KineticUnknown && m.State != ""
}

// Device describes the hardware
type Device struct {
	Type DeviceType `json:"type"`
	OS   string     `json:"os,omitempty"`
}

// Telemetry bundles one capture; nil sections were not reported
type Telemetry struct {
	Battery    *Battery  `json:"battery,omitempty"`
	Network    *Network  `json:"network,omitempty"`
	Motion     *Motion   `json:"motion,omitempty"`
	Device     *Device   `json:"device,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Constraint grades how hard to cap the response
type Constraint string

const (
	ConstraintNone     Constraint = "none"
	ConstraintLow      Constraint = "low"
	ConstraintMedium   Constraint = "medium"
	ConstraintHigh     Constraint = "high"
	ConstraintCritical Constraint = "critical"
)

func (c Constraint) rank() int {
	switch c {
	case ConstraintCritical:
		return 4
	case ConstraintHigh:
		return 3
	case ConstraintMedium:
		return 2
	case ConstraintLow:
		return 1
	default:
		return 0
	}
}

// TokenLimits caps response size per constraint grade
var TokenLimits = map[Constraint]int{
	ConstraintNone:     2000,
	ConstraintLow:      1500,
	ConstraintMedium:   1000,
	ConstraintHigh:     500,
	ConstraintCritical: 250,
}

// Assessment is the graded outcome for one telemetry capture
type Assessment struct {
	Constraint Constraint `json:"constraint"`
	Factors    []string   `json:"factors,omitempty"`
	Hints      []string   `json:"hints,omitempty"`
	TokenLimit int        `json:"token_limit"`
}

// Assess grades the capture by its most severe signal and collects
// the guidance each signal contributes
func Assess(t Telemetry) Assessment {
	a := Assessment{Constraint: ConstraintNone}
	raise := func(c Constraint, factor string) {
		if c.rank() > a.Constraint.rank() {
			a.Constraint = c
		}
		if factor != "" {
			a.Factors = append(a.Factors, factor)
		}
	}

	if b := t.Battery; b != nil {
		switch {
		case b.Critical():
			raise(ConstraintCritical, "User's device battery is critical (<10%). Prioritize essential information only.")
		case b.Low() && b.State != BatteryCharging:
			raise(ConstraintHigh, "Device battery is low (<20%) and not charging. Keep responses concise.")
		}
	}

	if n := t.Network; n != nil {
		switch {
		case n.Type == ConnOffline:
			raise(ConstraintCritical, "Device is offline. Responses may be queued for delivery.")
		case n.Constrained():
			raise(ConstraintMedium, "Network connection is constrained. Avoid large responses and media.")
		}
	}

	if m := t.Motion; m != nil {
		switch {
		case m.HighSpeed():
			raise(ConstraintMedium, "User is moving at speed, likely driving or in transit. Keep responses glanceable.")
			a.Hints = append(a.Hints, "Avoid content that demands sustained reading.")
		case m.Moving():
			raise(ConstraintLow, "User is in motion. Prefer short, scannable responses.")
		}
	}

	if d := t.Device; d != nil {
		switch d.Type {
		case DeviceSmartphone:
			a.Hints = append(a.Hints, "Prefer short paragraphs suited to a small screen.")
		case DeviceWearable:
			a.Hints = append(a.Hints, "Limit responses to one or two sentences.")
		}
	}

	a.TokenLimit = TokenLimits[a.Constraint]
	return a
}

// SystemPrompt renders the assessment as model instructions
func (a Assessment) SystemPrompt() string {
	var b strings.Builder
	b.WriteString("Adapt response based on user's device state.")
	if len(a.Factors) > 0 {
		b.WriteString("\nDevice constraints to consider:")
		for _, f := range a.Factors {
			b.WriteString("\n- " + f)
		}
	}
	if len(a.Hints) > 0 {
		b.WriteString("\nResponse format guidance:")
		for _, h := range a.Hints {
			b.WriteString("\n- " + h)
		}
	}
	fmt.Fprintf(&b, "\nKeep response under %d tokens.", a.TokenLimit)
	return b.String()
}
