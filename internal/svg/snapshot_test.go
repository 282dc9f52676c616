package svg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	want := sampleDocument()
	data, err := EncodeSnapshot(want)
	require.NoError(t, err)

	got, err := DecodeSnapshot(data)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshotRejectsInvalid(t *testing.T) {
	doc := NewDocument()
	doc.Circles = append(doc.Circles, Circle{R: -1})
	_, err := EncodeSnapshot(doc)
	assert.ErrorIs(t, err, ErrStructure)

	_, err = DecodeSnapshot([]byte{0xc1})
	assert.ErrorIs(t, err, ErrParse)
}
