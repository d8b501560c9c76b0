package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A short rendered clip.
const clipSize = 4 << 20

func TestParseRange_WholeFile(t *testing.T) {
	r, err := ParseRange("", clipSize)
	require.NoError(t, err)
	assert.Nil(t, r)
}

func TestParseRange_Spans(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   Range
	}{
		// browsers open a <video> with an open-ended probe
		{"bytes=0-", clipSize, Range{0, clipSize - 1}},
		{"bytes=0-1", clipSize, Range{0, 1}},
		// moov atom at the tail
		{"bytes=-65536", clipSize, Range{clipSize - 65536, clipSize - 1}},
		{"bytes=-65536", 1000, Range{0, 999}},
		{"bytes=1048576-2097151", clipSize, Range{1048576, 2097151}},
		{"bytes=4000-999999999", 5000, Range{4000, 4999}},
		{"bytes=4999-", 5000, Range{4999, 4999}},
		{"bytes= 10-19", 5000, Range{10, 19}},
		{"bytes=0-9,20-29", 5000, Range{0, 9}},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r, err := ParseRange(tt.header, tt.size)
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, tt.want, *r)
		})
	}
}

func TestParseRange_Rejected(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   error
	}{
		{"bytes=5000-", 5000, ErrUnsatisfiable},
		{"bytes=20-10", 5000, ErrUnsatisfiable},
		{"bytes=0-", 0, ErrUnsatisfiable},
		{"items=0-10", 5000, ErrInvalidRange},
		{"0-10", 5000, ErrInvalidRange},
		{"bytes=10", 5000, ErrInvalidRange},
		{"bytes=-0", 5000, ErrInvalidRange},
		{"bytes=-x", 5000, ErrInvalidRange},
		{"bytes=x-10", 5000, ErrInvalidRange},
		{"bytes=-5-10", 5000, ErrInvalidRange},
		{"bytes=0-y", 5000, ErrInvalidRange},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			r, err := ParseRange(tt.header, tt.size)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, r)
		})
	}
}

func TestRange_Headers(t *testing.T) {
	r := Range{Start: 1048576, End: 2097151}
	assert.EqualValues(t, 1048576, r.ContentLength())
	assert.Equal(t, "bytes 1048576-2097151/4194304", r.ContentRange(clipSize))

	one := Range{Start: 0, End: 0}
	assert.EqualValues(t, 1, one.ContentLength())
	assert.Equal(t, "bytes 0-0/1", one.ContentRange(1))
}
