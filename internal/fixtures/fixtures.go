// Package fixtures holds small JBIG2 streams with known page checksums.
// They cover every region type and both entropy coders, and back the
// decoder tests and the create-test-jbig2 command.
package fixtures

import (
	"embed"
	"fmt"
	"path"
	"slices"
	"strings"
)

//go:embed streams
var streams embed.FS

// Fixture is one stream and the expected decode of its single page.
type Fixture struct {
	Name        string
	Description string
	// Embedded streams carry no file header.
	Embedded bool
	// HasGlobals marks fixtures whose stream refers to a separate globals
	// stream, as PDF JBIG2Decode filters do.
	HasGlobals bool

	Width    int
	Height   int
	Checksum string // hex SHA-256 of the packed page rows
}

var all = []Fixture{
	{
		Name:        "generic-text",
		Description: "sequential file: arithmetic symbol dictionary, text region with two-row strips, TPGDON generic region combined with XOR",
		Width:       64,
		Height:      48,
		Checksum:    "abfc50683ab06bf18facea68b93c14b9f072ad0d8b881ef9286fda7d49e43778",
	},
	{
		Name:        "huffman-text",
		Description: "random-access file: Huffman symbol dictionary with uncompressed collective bitmaps, transposed Huffman text region with a user DS table",
		Width:       32,
		Height:      24,
		Checksum:    "6689a8ae92ab8815c4f6df94066d40fd82b0ce376a486cebdcc5ac30c241a248",
	},
	{
		Name:        "halftone",
		Description: "sequential file with unknown page count: pattern dictionary and halftone region with skipped grid cells",
		Width:       24,
		Height:      20,
		Checksum:    "143e8e6e86694b37ececb19f564bea0d2368600a33727438aa89e749b6efbcf3",
	},
	{
		Name:        "refinement",
		Description: "refinement of an intermediate region, refinement of the page, text region with refined instances",
		Width:       40,
		Height:      32,
		Checksum:    "3d439943a162f80a53d7e7d070e63c8d0dff9c2b73d277bbdcad091bb38343c3",
	},
	{
		Name:        "striped",
		Description: "embedded stream with globals: striped page of unknown height, unknown-length generic region, end of stripe segments",
		Embedded:    true,
		HasGlobals:  true,
		Width:       48,
		Height:      32,
		Checksum:    "134fd6cac222e59daee000ec71f638d375c12c05b3dde6dbeeefe25e8159f901",
	},
}

// All returns every fixture, sorted by name.
func All() []Fixture {
	out := slices.Clone(all)
	slices.SortFunc(out, func(a, b Fixture) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Lookup returns the fixture with the given name.
func Lookup(name string) (Fixture, error) {
	i := slices.IndexFunc(all, func(f Fixture) bool { return f.Name == name })
	if i < 0 {
		return Fixture{}, fmt.Errorf("fixtures: unknown fixture %q", name)
	}
	return all[i], nil
}

// FileName is the name the stream is written under.
func (f Fixture) FileName() string { return f.Name + ".jb2" }

// GlobalsFileName is the name the globals stream is written under.
func (f Fixture) GlobalsFileName() string { return f.Name + ".glob" }

// Data returns the stream bytes.
func (f Fixture) Data() []byte { return mustRead(f.FileName()) }

// Globals returns the globals stream, or nil.
func (f Fixture) Globals() []byte {
	if !f.HasGlobals {
		return nil
	}
	return mustRead(f.GlobalsFileName())
}

func mustRead(name string) []byte {
	b, err := streams.ReadFile(path.Join("streams", name))
	if err != nil {
		panic(fmt.Sprintf("fixtures: %v", err))
	}
	return b
}
