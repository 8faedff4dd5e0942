package occupancy

// ProbeStatus is the outcome of an external availability probe.
type ProbeStatus string

const (
	// ProbeOK means Beds24 answered the availability query.
	ProbeOK ProbeStatus = "OK"
	// ProbeUnreachable means the probe failed or timed out. Timeouts are
	// treated identically to hard failures.
	ProbeUnreachable ProbeStatus = "UNREACHABLE"
)

// Resolve decides the authoritative occupancy source for a unit. There is
// deliberately no fallback to LOCAL when Beds24 is down: reporting a unit as
// locally available while the external system controls it risks a double
// booking, so an unconfirmed state resolves to UNKNOWN.
func Resolve(mapping *ExternalMapping, probe ProbeStatus) Resolution {
	if mapping == nil || mapping.SourceOfTruth == SourceOfTruthLocal {
		return Resolution{Source: SourceLocal, IsExternallyControlled: false}
	}
	if probe == ProbeOK {
		return Resolution{Source: SourceBeds24, IsExternallyControlled: true}
	}
	return Resolution{Source: SourceUnknown, IsExternallyControlled: true}
}
