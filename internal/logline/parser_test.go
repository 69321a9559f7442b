package logline

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/encounterlab/internal/encounter"
	"github.com/roach88/encounterlab/internal/ir"
)

const capture = `01|2024-05-01T20:00:00.0000000+00:00|4A1|The Windward Wilds|h1
02|2024-05-01T20:00:00.0000000+00:00|10ff0001|Tini Poutini|h2
03|2024-05-01T20:00:00.0000000+00:00|10FF0001|Tini Poutini|18|64|0000|28|Jenova|0|0|100000|120000|10000|10000|||100.00|95.50|0.00|-3.14|h3
03|2024-05-01T20:00:00.0000000+00:00|10FF0002|Potato Chippy|13|64|0000|28|Jenova|0|0|150000|150000|10000|10000|||101.00|96.00|0.00|0.00|h4
11|2024-05-01T20:00:00.0000000+00:00|2|10FF0001|10FF0002|h5
251|2024-05-01T20:00:00.2000000+00:00|debug text|h6
20|2024-05-01T20:00:00.5000000+00:00|40000001|Boss|A3D5|Wild Charge|10ff0001|Tini Poutini|4.70|100.00|100.00|0.00|0.00|h7
39|2024-05-01T20:00:01.0000000+00:00|10FF0001|Tini Poutini|90000|120000|10000|10000|||99.00|94.00|0.00|1.00|h8
`

func TestParseLine_StartsUsing(t *testing.T) {
	line, ok, err := ParseLine("20|2024-05-01T20:00:00.5000000+00:00|40000001|Boss|A3D5|Wild Charge|10ff0001|Tini Poutini|4.70|100.00|100.00|0.00|0.00|abcd")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, ir.LineStartsUsing, line.Type)
	assert.Equal(t, "40000001", line.Fields.String("sourceId"))
	assert.Equal(t, "A3D5", line.Fields.String("id"))
	assert.Equal(t, "Wild Charge", line.Fields.String("ability"))
	assert.Equal(t, "10FF0001", line.Fields.String("targetId"), "actor ids are upper-cased")
	assert.Equal(t, "4.70", line.Fields.String("castTime"))
	assert.NotContains(t, line.Fields, "abcd")

	want := time.Date(2024, 5, 1, 20, 0, 0, 500_000_000, time.UTC).UnixMilli()
	assert.Equal(t, want, line.Timestamp)
}

func TestParseLine_UnknownTypeSkipped(t *testing.T) {
	_, ok, err := ParseLine("251|2024-05-01T20:00:00.0000000+00:00|whatever|h")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestParseLine_Errors(t *testing.T) {
	_, _, err := ParseLine("garbage")
	assert.Error(t, err)

	_, _, err = ParseLine("20|not-a-time|x|h")
	assert.ErrorContains(t, err, "parse timestamp")
}

func TestParseLine_PartyList(t *testing.T) {
	line, ok, err := ParseLine("11|2024-05-01T20:00:00.0000000+00:00|2|10ff0001|10ff0002|h")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ir.IRArray{ir.IRString("10FF0001"), ir.IRString("10FF0002")}, line.Fields["ids"])
}

func TestImport(t *testing.T) {
	enc, stats, err := Import(context.Background(), strings.NewReader(capture), Options{ID: "enc-1"})
	require.NoError(t, err)

	assert.Equal(t, 7, stats.Lines)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2, stats.Actors)

	assert.Equal(t, "enc-1", enc.ID())
	assert.Equal(t, "4A1", enc.ZoneID())
	assert.Equal(t, "The Windward Wilds", enc.ZoneName())
	assert.Equal(t, []string{"10FF0001", "10FF0002"}, enc.PartyMembers())

	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, start, enc.StartTimestamp())

	tini := enc.StateAt("10FF0001", start)
	assert.Equal(t, 24, tini.Job)
	assert.Equal(t, 100, tini.Level)
	assert.Equal(t, int64(100000), tini.CurrentHP)
	assert.Equal(t, int64(120000), tini.MaxHP)
	assert.InDelta(t, 95.5, tini.PosY, 1e-9)
	assert.InDelta(t, -3.14, tini.Heading, 1e-9)

	// UpdateHP keeps job and level from the previous snapshot.
	later := enc.StateAt("10FF0001", start+1000)
	assert.Equal(t, 24, later.Job)
	assert.Equal(t, int64(90000), later.CurrentHP)
	assert.InDelta(t, 99.0, later.PosX, 1e-9)
	assert.True(t, enc.HasStateChangeAt("10FF0001", start+1000))
}

func TestImport_PrimaryPlayerFallback(t *testing.T) {
	in := `02|2024-05-01T20:00:00.0000000+00:00|10ff0001|Tini Poutini|h
03|2024-05-01T20:00:00.0000000+00:00|10FF0001|Tini Poutini|18|64|0000|28|Jenova|0|0|1|1|1|1|||0|0|0|0|h
`
	enc, _, err := Import(context.Background(), strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"10FF0001"}, enc.PartyMembers())
}

func TestImport_Errors(t *testing.T) {
	t.Run("bad combatant number", func(t *testing.T) {
		in := "03|2024-05-01T20:00:00.0000000+00:00|10FF0001|Tini|zz|64|h\n"
		_, _, err := Import(context.Background(), strings.NewReader(in), Options{})
		assert.ErrorContains(t, err, "line 1")
		assert.ErrorContains(t, err, "field job")
	})

	t.Run("unordered", func(t *testing.T) {
		in := "00|2024-05-01T20:00:01.0000000+00:00|0039|Info|one|h\n" +
			"00|2024-05-01T20:00:00.0000000+00:00|0039|Info|two|h\n"
		_, _, err := Import(context.Background(), strings.NewReader(in), Options{})
		require.Error(t, err)
		assert.True(t, encounter.IsUnreachable(err))
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, _, err := Import(ctx, strings.NewReader(capture), Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
