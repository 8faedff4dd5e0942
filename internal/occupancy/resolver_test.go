package occupancy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func beds24Mapping() *ExternalMapping {
	return &ExternalMapping{
		UnitID:         7,
		ConnectionType: ConnectionAPI,
		SourceOfTruth:  SourceOfTruthBeds24,
		PropertyID:     "prop-123",
	}
}

func TestResolveNoMappingIsLocal(t *testing.T) {
	res := Resolve(nil, ProbeUnreachable)
	require.Equal(t, SourceLocal, res.Source)
	require.False(t, res.IsExternallyControlled)
}

func TestResolveLocalSourceOfTruth(t *testing.T) {
	mapping := beds24Mapping()
	mapping.SourceOfTruth = SourceOfTruthLocal

	res := Resolve(mapping, ProbeOK)
	require.Equal(t, SourceLocal, res.Source)
	require.False(t, res.IsExternallyControlled)
}

func TestResolveBeds24Reachable(t *testing.T) {
	res := Resolve(beds24Mapping(), ProbeOK)
	require.Equal(t, SourceBeds24, res.Source)
	require.True(t, res.IsExternallyControlled)
}

func TestResolveBeds24UnreachableNeverFallsBackToLocal(t *testing.T) {
	res := Resolve(beds24Mapping(), ProbeUnreachable)
	require.Equal(t, SourceUnknown, res.Source)
	require.NotEqual(t, SourceLocal, res.Source)
	require.True(t, res.IsExternallyControlled, "external control is independent of reachability")
}

func TestMappingValidation(t *testing.T) {
	cases := []struct {
		name    string
		mapping ExternalMapping
		wantErr bool
	}{
		{
			name:    "API mapping with property ID",
			mapping: ExternalMapping{UnitID: 1, ConnectionType: ConnectionAPI, SourceOfTruth: SourceOfTruthBeds24, PropertyID: "p1"},
		},
		{
			name:    "API mapping without property ID",
			mapping: ExternalMapping{UnitID: 1, ConnectionType: ConnectionAPI, SourceOfTruth: SourceOfTruthBeds24},
			wantErr: true,
		},
		{
			name:    "iCal mapping with import URL",
			mapping: ExternalMapping{UnitID: 1, ConnectionType: ConnectionICal, SourceOfTruth: SourceOfTruthBeds24, ImportURL: "https://beds24.example/ical/1.ics"},
		},
		{
			name:    "iCal mapping without import URL",
			mapping: ExternalMapping{UnitID: 1, ConnectionType: ConnectionICal, SourceOfTruth: SourceOfTruthBeds24},
			wantErr: true,
		},
		{
			name:    "unknown connection type",
			mapping: ExternalMapping{UnitID: 1, ConnectionType: "FTP", SourceOfTruth: SourceOfTruthLocal},
			wantErr: true,
		},
		{
			name:    "missing unit",
			mapping: ExternalMapping{ConnectionType: ConnectionAPI, SourceOfTruth: SourceOfTruthBeds24, PropertyID: "p1"},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.mapping.Validate()
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}
