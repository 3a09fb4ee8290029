package moduleid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name      string
		raw       string
		expectErr bool
		expected  ID
	}{
		{name: "simple id", raw: "SendTestMatrix:0", expected: "SendTestMatrix:0"},
		{name: "multi digit instance", raw: "Report_2:15", expected: "Report_2:15"},
		{name: "error - empty", raw: "", expectErr: true},
		{name: "error - missing instance", raw: "Send", expectErr: true},
		{name: "error - non numeric instance", raw: "Send:x", expectErr: true},
		{name: "error - leading digit", raw: "1Send:0", expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			id, err := Parse(tc.raw)
			if tc.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, id)
		})
	}
}

func TestSplit(t *testing.T) {
	name, n, err := Split(New("LoopEnd", 3))
	require.NoError(t, err)
	assert.Equal(t, "LoopEnd", name)
	assert.Equal(t, 3, n)
}

func TestParseConnection(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		c := ConnectionID{
			From: PortRef{Module: "Send:0", Index: 0},
			To:   PortRef{Module: "ConcatenateMatrices:1", Index: 2},
		}
		parsed, err := ParseConnection(c.String())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	})

	t.Run("error cases", func(t *testing.T) {
		_, err := ParseConnection("Send:0[0]")
		assert.ErrorContains(t, err, "expected 'from->to'")

		_, err = ParseConnection("Send:0->Report:0[0]")
		assert.ErrorContains(t, err, "invalid connection source")

		_, err = ParseConnection("Send:0[0]->Report[0]")
		assert.ErrorContains(t, err, "invalid connection destination")
	})
}
