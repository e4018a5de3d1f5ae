// Package snapshot encodes consensus timeline snapshots for hand-off to
// rendering layers, as msgpack or JSON.
package snapshot

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/validaoxyz/slot-timeline/internal/model"
)

type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
)

// picks the format from a file extension; anything but .msgpack/.mpk is JSON
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".msgpack", ".mpk":
		return FormatMsgpack
	}
	return FormatJSON
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "msgpack", "mpk":
		return FormatMsgpack, nil
	}
	return "", eris.Errorf("unknown snapshot format %q", s)
}

func (f Format) ContentType() string {
	if f == FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json"
}

// wire layout shared by both formats
type wireSnapshot struct {
	Slots  []model.Slot  `msgpack:"slots" json:"slots"`
	Events []model.Event `msgpack:"events" json:"events"`
}

// Encode writes d to w.
func Encode(w io.Writer, d *model.ConsensusData, f Format) error {
	wire := wireSnapshot{Slots: d.Slots(), Events: d.Events()}
	if wire.Slots == nil {
		wire.Slots = []model.Slot{}
	}
	if wire.Events == nil {
		wire.Events = []model.Event{}
	}

	switch f {
	case FormatMsgpack:
		enc := msgpack.NewEncoder(w)
		enc.UseCompactInts(true)
		if err := enc.Encode(&wire); err != nil {
			return eris.Wrap(err, "encode msgpack snapshot")
		}
	case FormatJSON:
		if err := json.NewEncoder(w).Encode(&wire); err != nil {
			return eris.Wrap(err, "encode json snapshot")
		}
	default:
		return eris.Errorf("unknown snapshot format %q", f)
	}
	return nil
}

// Decode reads a snapshot written by Encode.
func Decode(r io.Reader, f Format) (*model.ConsensusData, error) {
	var wire wireSnapshot

	switch f {
	case FormatMsgpack:
		dec := msgpack.NewDecoder(r)
		dec.SetCustomStructTag("msgpack")
		if err := dec.Decode(&wire); err != nil {
			return nil, eris.Wrap(err, "decode msgpack snapshot")
		}
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&wire); err != nil {
			return nil, eris.Wrap(err, "decode json snapshot")
		}
	default:
		return nil, eris.Errorf("unknown snapshot format %q", f)
	}
	return model.NewConsensusData(wire.Slots, wire.Events), nil
}

const snapshotPerm = 0o644

// WriteFile writes d next to path and renames it into place, so readers never
// observe a partial snapshot.
func WriteFile(path string, d *model.ConsensusData) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "create temp file for %s", path)
	}
	defer os.Remove(tmp.Name())

	bw := bufio.NewWriter(tmp)
	if err := Encode(bw, d, FormatFromPath(path)); err != nil {
		tmp.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		return eris.Wrapf(err, "flush %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "close %s", tmp.Name())
	}
	// CreateTemp uses 0600; renderers run as other users
	if err := os.Chmod(tmp.Name(), snapshotPerm); err != nil {
		return eris.Wrapf(err, "chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return eris.Wrapf(err, "rename snapshot to %s", path)
	}
	return nil
}

func ReadFile(path string) (*model.ConsensusData, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open snapshot %s", path)
	}
	defer file.Close()

	return Decode(bufio.NewReader(file), FormatFromPath(path))
}
