package satellite

import "strconv"

type TemperatureControl struct {
	*Unit[int64]
}

func (t *TemperatureControl) Temperature() int64 {
	return t.Value()
}

type LightControl struct {
	*Unit[int64]
}

func (l *LightControl) LightIntensity() int64 {
	return l.Value()
}

// SecurityAlert latches once a crossing sets its status
type SecurityAlert struct {
	*Unit[bool]
}

func (s *SecurityAlert) Status() bool {
	return s.Value()
}

func NewTemperatureControl(opts ...Option[int64]) (*TemperatureControl, Controller[int64]) {
	u, c := newUnit(TemperatureControlName, encodeInt, opts...)
	return &TemperatureControl{u}, c
}

func NewLightControl(opts ...Option[int64]) (*LightControl, Controller[int64]) {
	u, c := newUnit(LightControlName, encodeInt, opts...)
	return &LightControl{u}, c
}

func NewSecurityAlert(opts ...Option[bool]) (*SecurityAlert, Controller[bool]) {
	u, c := newUnit(SecurityAlertName, strconv.FormatBool, opts...)
	return &SecurityAlert{u}, c
}

// DecodeInt parses a persisted temperature or light value
func DecodeInt(raw string) (int64, error) {
	return strconv.ParseInt(raw, 10, 64)
}

// DecodeBool parses a persisted security status
func DecodeBool(raw string) (bool, error) {
	return strconv.ParseBool(raw)
}

func encodeInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
