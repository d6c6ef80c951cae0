package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/mod/semver"
)

// Magic is the `.bogc` file magic (4 bytes, ASCII).
const Magic = "BOGC"

// FormatVersion is the format's own semver, independent of the language
// version. A reader rejects a file whose major component it does not
// support; a minor bump must stay backward-readable.
const FormatVersion = "v1.0"

// Flags is a bitmask of optional `.bogc` features.
type Flags uint16

const (
	// FlagHasMeta indicates a CBOR metadata trailer follows the strings blob.
	FlagHasMeta Flags = 1 << 0
)

// Meta is optional descriptive metadata, CBOR-encoded in the trailer. It is
// never consulted for execution semantics and is excluded from Hash.
type Meta struct {
	SourcePath string `cbor:"source_path,omitempty"`
	CompilerID string `cbor:"compiler_id,omitempty"`
	BuiltAt    int64  `cbor:"built_at,omitempty"` // unix seconds, caller-supplied
}

// header is the fixed-size preamble. Layout:
// MAGIC(4) | VERSION(2 major<<8|minor) | FLAGS(2) | ENTRY(4) | CODE_LEN(4) | STRINGS_LEN(4) | HASH(32)
const headerLen = 4 + 2 + 2 + 4 + 4 + 4 + 32

func encodeVersion() uint16 {
	major, minor := semverParts(FormatVersion)
	return uint16(major)<<8 | uint16(minor)
}

func semverParts(v string) (major, minor int) {
	// semver.Major/MajorMinor return strings like "v1" / "v1.0"; parse the
	// numeric parts out since the on-disk encoding is a packed uint16.
	mm := semver.MajorMinor(v)
	fmt.Sscanf(mm, "v%d.%d", &major, &minor)
	return
}

// ContentHash returns the BLAKE2b-256 digest of m's code and string pool,
// the same digest `.bogc` files are verified against on Read. The import
// subsystem uses it to key its memoization cache by content rather than by
// import path, so identical modules reached via different ids execute their
// top level only once.
func ContentHash(m *Module) ([32]byte, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, fmt.Errorf("bytecode: new hasher: %w", err)
	}
	hasher.Write(m.Code)
	hasher.Write(m.Strings)
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// Write encodes m to w as a `.bogc` file, hashing code||strings with
// BLAKE2b-256 so a reader can detect truncation or corruption before
// trusting the bytecode to the interpreter. meta, if non-nil, is appended
// as a CBOR trailer outside the hash (descriptive only).
func Write(w io.Writer, m *Module, meta *Meta) ([32]byte, error) {
	digest, err := ContentHash(m)
	if err != nil {
		return [32]byte{}, err
	}

	var trailer []byte
	flags := Flags(0)
	if meta != nil {
		trailer, err = cbor.Marshal(meta)
		if err != nil {
			return [32]byte{}, fmt.Errorf("bytecode: marshal meta: %w", err)
		}
		flags |= FlagHasMeta
	}

	var buf bytes.Buffer
	buf.WriteString(Magic)
	binary.Write(&buf, binary.LittleEndian, encodeVersion())
	binary.Write(&buf, binary.LittleEndian, uint16(flags))
	binary.Write(&buf, binary.LittleEndian, m.Entry)
	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Code)))
	binary.Write(&buf, binary.LittleEndian, uint32(len(m.Strings)))
	buf.Write(digest[:])
	buf.Write(m.Code)
	buf.Write(m.Strings)
	buf.Write(trailer)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return [32]byte{}, fmt.Errorf("bytecode: write: %w", err)
	}
	return digest, nil
}

// maxModuleSize guards Read against an oversized length header before any
// allocation; individual import sites additionally enforce their own
// max_import_size (spec.md §4.6).
const maxModuleSize = 256 * 1024 * 1024

// Read decodes a `.bogc` file from r, verifying its magic, format-version
// compatibility, and content hash. name is attached to the resulting
// Module for diagnostics; it is not part of the on-disk format.
func Read(r io.Reader, name string) (*Module, *Meta, error) {
	var hdr [headerLen]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, nil, fmt.Errorf("bytecode: read header: %w", err)
	}
	if string(hdr[0:4]) != Magic {
		return nil, nil, fmt.Errorf("bytecode: bad magic %q", hdr[0:4])
	}
	version := binary.LittleEndian.Uint16(hdr[4:6])
	if err := checkVersion(version); err != nil {
		return nil, nil, err
	}
	flags := Flags(binary.LittleEndian.Uint16(hdr[6:8]))
	entry := binary.LittleEndian.Uint32(hdr[8:12])
	codeLen := binary.LittleEndian.Uint32(hdr[12:16])
	stringsLen := binary.LittleEndian.Uint32(hdr[16:20])
	var wantHash [32]byte
	copy(wantHash[:], hdr[20:52])

	if uint64(codeLen)+uint64(stringsLen) > maxModuleSize {
		return nil, nil, fmt.Errorf("bytecode: module size %d exceeds maximum %d", uint64(codeLen)+uint64(stringsLen), maxModuleSize)
	}

	code := make([]byte, codeLen)
	if _, err := io.ReadFull(r, code); err != nil {
		return nil, nil, fmt.Errorf("bytecode: read code: %w", err)
	}
	strs := make([]byte, stringsLen)
	if _, err := io.ReadFull(r, strs); err != nil {
		return nil, nil, fmt.Errorf("bytecode: read strings: %w", err)
	}

	hasher, err := blake2b.New256(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("bytecode: new hasher: %w", err)
	}
	hasher.Write(code)
	hasher.Write(strs)
	var gotHash [32]byte
	copy(gotHash[:], hasher.Sum(nil))
	if gotHash != wantHash {
		return nil, nil, fmt.Errorf("bytecode: content hash mismatch (corrupt or truncated module)")
	}

	var meta *Meta
	if flags&FlagHasMeta != 0 {
		trailer, err := io.ReadAll(r)
		if err != nil {
			return nil, nil, fmt.Errorf("bytecode: read meta trailer: %w", err)
		}
		meta = &Meta{}
		if err := cbor.Unmarshal(trailer, meta); err != nil {
			return nil, nil, fmt.Errorf("bytecode: decode meta trailer: %w", err)
		}
	}

	return &Module{Name: name, Code: code, Strings: strs, Entry: entry}, meta, nil
}

// checkVersion rejects a `.bogc` file whose major format version this
// reader does not understand (spec.md §4.6: version-header validation
// against the VM's supported major version). bog.Decode reports the
// rejection as MalformedByteCode; a rejected import fails as RuntimeError.
func checkVersion(packed uint16) error {
	major := packed >> 8
	wantMajor, _ := semverParts(FormatVersion)
	if int(major) != wantMajor {
		return fmt.Errorf("bytecode: unsupported module format version %d.%d (reader supports %s)", major, packed&0xff, FormatVersion)
	}
	return nil
}
