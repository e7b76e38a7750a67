package timerange

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Range
		wantErr bool
	}{
		{in: "09:00-17:00", want: Range{Start: 540, End: 1020}},
		{in: "00:00-23:59", want: Range{Start: 0, End: 1439}},
		{in: "09:00", wantErr: true},
		{in: "09:00-12:00-13:00", wantErr: true},
		{in: "9:00-17:00", wantErr: true},
		{in: "09:60-17:00", wantErr: true},
		{in: "24:00-25:00", wantErr: true},
		{in: "ab:cd-17:00", wantErr: true},
		{in: "+9:00-17:00", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrMalformedRange), "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.in, got.String())
		})
	}
}

func TestContainsInclusive(t *testing.T) {
	r, err := Parse("09:00-17:00")
	require.NoError(t, err)

	assert.True(t, r.Contains(9*60))
	assert.True(t, r.Contains(17*60))
	assert.True(t, r.Contains(12*60+30))
	assert.False(t, r.Contains(8*60+59))
	assert.False(t, r.Contains(17*60+1))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(nil))
	assert.NoError(t, Validate([]string{"09:00-12:00", "13:00-17:00"}))
	assert.ErrorIs(t, Validate([]string{"18:00-09:00"}), ErrMalformedRange)
	assert.ErrorIs(t, Validate([]string{"09:00-12:00", "bad"}), ErrMalformedRange)
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "00:05", FormatClock(5))
	assert.Equal(t, "23:59", FormatClock(1439))
}
