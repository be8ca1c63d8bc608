package detector

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	testCases := []struct {
		message  string
		expected Command
	}{
		{
			message:  "@SpotDetector alive",
			expected: Command{Name: "alive"},
		},
		{
			message:  "@SpotDetector instance",
			expected: Command{Name: "instance"},
		},
		{
			message:  "@SpotDetector report",
			expected: Command{Name: "report"},
		},
		{
			message:  "@SpotDetector report 30d 5",
			expected: Command{Name: "report", Days: 30, Threshold: 5},
		},
		{
			// parameters are recognized by shape, not position
			message:  "@SpotDetector report 5 30d",
			expected: Command{Name: "report", Days: 30, Threshold: 5},
		},
		{
			message:  "@SpotDetector report 14d",
			expected: Command{Name: "report", Days: 14},
		},
		{
			message:  "REPORT 7d",
			expected: Command{Name: "report", Days: 7},
		},
		{
			// junk parameters are ignored, not fatal
			message:  "@SpotDetector report soon 10d",
			expected: Command{Name: "report", Days: 10},
		},
	}

	for _, test := range testCases {
		cmd, err := ParseCommand(test.message)
		require.NoError(t, err, test.message)
		require.Equal(t, test.expected, cmd, test.message)
	}
}

func TestParseCommandUnknown(t *testing.T) {
	_, err := ParseCommand("@SpotDetector repot")
	require.Error(t, err)
	require.Contains(t, err.Error(), `"report"`)

	_, err = ParseCommand("@SpotDetector xyzzy")
	require.Error(t, err)

	_, err = ParseCommand("@SpotDetector")
	require.Error(t, err)
}
