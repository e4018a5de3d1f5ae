package snapshot

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/validaoxyz/slot-timeline/internal/model"
	"github.com/validaoxyz/slot-timeline/internal/source"
)

func synthetic(t *testing.T) *model.ConsensusData {
	t.Helper()
	gen := source.NewSyntheticSource()
	gen.Slots = 12
	gen.Validators = 4
	d, err := gen.Load(context.Background())
	require.NoError(t, err)
	return d
}

func TestRoundTrip(t *testing.T) {
	d := synthetic(t)

	for _, f := range []Format{FormatJSON, FormatMsgpack} {
		t.Run(string(f), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Encode(&buf, d, f))

			got, err := Decode(&buf, f)
			require.NoError(t, err)
			assert.Equal(t, d.Slots(), got.Slots())
			assert.ElementsMatch(t, d.Events(), got.Events())
		})
	}
}

func TestEncodeEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, model.NewConsensusData(nil, nil), FormatJSON))
	assert.JSONEq(t, `{"slots":[],"events":[]}`, buf.String())
}

func TestJSONFieldNames(t *testing.T) {
	d := model.NewConsensusData(
		[]model.Slot{{Committee: "mc.0", Number: 4, StartEstimateMs: 1.5}},
		[]model.Event{model.PhaseEvent("mc.0", 4, model.LabelCollate, 1.5, 3)},
	)
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, d, FormatJSON))
	assert.JSONEq(t, `{
		"slots":[{"committee":"mc.0","slot":4,"is_empty":false,"start_estimate_ms":1.5}],
		"events":[{"committee":"mc.0","slot":4,"label":"collate","kind":"phase","t_ms":1.5,"t1_ms":3}]
	}`, buf.String())
}

func TestFormats(t *testing.T) {
	assert.Equal(t, FormatMsgpack, FormatFromPath("out/snap.msgpack"))
	assert.Equal(t, FormatMsgpack, FormatFromPath("snap.MPK"))
	assert.Equal(t, FormatJSON, FormatFromPath("snap.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("snap"))

	f, err := ParseFormat("msgpack")
	require.NoError(t, err)
	assert.Equal(t, FormatMsgpack, f)
	f, err = ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)
	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, "application/msgpack", FormatMsgpack.ContentType())
	assert.Equal(t, "application/json", FormatJSON.ContentType())
}

func TestWriteReadFile(t *testing.T) {
	d := synthetic(t)
	dir := t.TempDir()

	for _, name := range []string{"snap.json", "snap.msgpack"} {
		path := filepath.Join(dir, name)
		require.NoError(t, WriteFile(path, d))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

		got, err := ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, d.Slots(), got.Slots())
		assert.ElementsMatch(t, d.Events(), got.Events())
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "temp files are cleaned up")

	_, err = ReadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
