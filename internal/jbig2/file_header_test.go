package jbig2

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripFileHeaderNoSignature(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03}
	trimmed, header, err := stripFileHeader(data)
	require.NoError(t, err)
	assert.Nil(t, header)
	assert.Same(t, &data[0], &trimmed[0], "expected the original slice")
}

func TestStripFileHeader(t *testing.T) {
	payload := []byte{0xAA, 0xBB, 0xCC}
	tests := []struct {
		name    string
		header  []byte
		want    FileHeader
		wantErr error
	}{
		{
			name:   "sequential with page count",
			header: []byte{0x01, 0x00, 0x00, 0x00, 0x03},
			want:   FileHeader{Organisation: OrganisationSequential, NumPages: 3, HasNumPages: true},
		},
		{
			name:   "random access with page count",
			header: []byte{0x00, 0x00, 0x00, 0x00, 0x01},
			want:   FileHeader{Organisation: OrganisationRandomAccess, NumPages: 1, HasNumPages: true},
		},
		{
			name:   "sequential with unknown page count",
			header: []byte{0x03},
			want:   FileHeader{Organisation: OrganisationSequential},
		},
		{
			name:    "reserved flag bits",
			header:  []byte{0x05},
			wantErr: ErrMalformedHeader,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := append(append(append([]byte{}, FileSignature...), tt.header...), payload...)
			trimmed, header, err := stripFileHeader(data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(&tt.want, header); diff != "" {
				t.Errorf("header mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, payload, trimmed)
		})
	}
}

func TestStripFileHeaderTruncated(t *testing.T) {
	data := append(append([]byte{}, FileSignature...), 0x00, 0x00)
	_, _, err := stripFileHeader(data)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStreamIO))
}
