package model

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
    d, err := ParseDate(" 2025-02-28 ")
    require.NoError(t, err)
    assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), d)

    for _, bad := range []string{"", "2025-02-30", "28/02/2025", "2025-2-28T10:00"} {
        _, err := ParseDate(bad)
        assert.Error(t, err, bad)
    }
}

func TestNormalizeDate(t *testing.T) {
    tehran := time.FixedZone("IRST", 3*3600+1800)
    late := time.Date(2025, 6, 1, 23, 45, 0, 0, tehran)
    assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), NormalizeDate(late))
    assert.Equal(t, "2025-06-01", FormatDate(NormalizeDate(late)))
}
