// Package pack implements the read-only resource pack file format: a
// stream of raw entry payloads concatenated in insertion order, followed
// by a registry trailer mapping path to (offset, size), located via a
// fixed-size footer at end-of-file. The format is bit-exact: two builds
// fed the same entries in the same order produce byte-identical files.
package pack

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/catalystcommunity/enginecore/internal/errs"
)

// Magic identifies a resource pack file. Written as the last 8 bytes of
// the footer.
const Magic uint64 = 0x4B414E5250414B31 // "KANRPAK1"

// footerSize is the fixed number of trailing bytes: registry_offset (u64),
// registry_size (u64), encoding (u64), magic (u64).
const footerSize = 32

// Encoding selects how the registry records each entry's virtual path,
// mirroring the CLI's "--pack none|regular|interned" switch ("none"
// means the builder isn't invoked at all). Regular mode writes each
// path's full bytes inline in the registry; interned mode instead
// writes one string-interning table of unique `/`-separated path
// segments ahead of the registry, and each registry entry references its
// path as a sequence of segment indices, so a directory name shared by
// many entries costs one table slot instead of repeated bytes per entry.
type Encoding int

const (
	EncodingRegular Encoding = iota
	EncodingInterned
)

// entryRecord is one payload's placement within the pack.
type entryRecord struct {
	Path   string
	Offset uint64
	Size   uint64
}

// Builder accumulates entries and writes a pack file on Finish. Entries
// are written to the output stream immediately on Add so payload bytes
// never need to be held in memory all at once.
type Builder struct {
	w        *bufio.Writer
	closer   io.Closer
	offset   uint64
	encoding Encoding
	entries  []entryRecord
}

// Create opens path for writing and returns a Builder ready to accept
// entries.
func Create(path string, encoding Encoding) (*Builder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("pack: create %q: %w", path, err)
	}
	return &Builder{w: bufio.NewWriter(f), closer: f, encoding: encoding}, nil
}

// Add writes one entry's payload and records its placement for the
// registry trailer. Entries must be added in the pack's intended
// insertion order; Add is not safe for concurrent use.
func (b *Builder) Add(virtualPath string, payload []byte) error {
	n, err := b.w.Write(payload)
	if err != nil {
		return fmt.Errorf("pack: write payload for %q: %w", virtualPath, err)
	}
	b.entries = append(b.entries, entryRecord{Path: virtualPath, Offset: b.offset, Size: uint64(n)})
	b.offset += uint64(n)
	return nil
}

// Finish writes the registry and footer, flushes, and closes the
// underlying file. The registry is sorted by path so a reader can bisect
// it for lookup, matching the mount contract's "lookups bisect the
// registry".
func (b *Builder) Finish() error {
	sort.Slice(b.entries, func(i, j int) bool { return b.entries[i].Path < b.entries[j].Path })

	registryStart := b.offset
	var err error
	if b.encoding == EncodingInterned {
		err = b.writeInternedRegistry()
	} else {
		err = b.writeRegularRegistry()
	}
	if err != nil {
		return err
	}
	registrySize := b.offset - registryStart

	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint64(footer[0:8], registryStart)
	binary.LittleEndian.PutUint64(footer[8:16], registrySize)
	binary.LittleEndian.PutUint64(footer[16:24], uint64(b.encoding))
	binary.LittleEndian.PutUint64(footer[24:32], Magic)
	if _, err := b.w.Write(footer); err != nil {
		return fmt.Errorf("pack: write footer: %w", err)
	}

	if err := b.w.Flush(); err != nil {
		return fmt.Errorf("pack: flush: %w", err)
	}
	return b.closer.Close()
}

func (b *Builder) writeRegularRegistry() error {
	if err := b.writeTrackedU64(uint64(len(b.entries))); err != nil {
		return err
	}
	for _, e := range b.entries {
		if err := b.writeString(e.Path); err != nil {
			return err
		}
		if err := b.writePlacement(e); err != nil {
			return err
		}
	}
	return nil
}

// writeInternedRegistry writes the unique `/`-separated path segments
// found across all entries as a table, then each entry as a sequence of
// segment indices into that table instead of raw path bytes.
func (b *Builder) writeInternedRegistry() error {
	index := make(map[string]uint32)
	var table []string
	segmentsOf := make([][]uint32, len(b.entries))

	for i, e := range b.entries {
		parts := strings.Split(e.Path, "/")
		ids := make([]uint32, len(parts))
		for j, part := range parts {
			id, ok := index[part]
			if !ok {
				id = uint32(len(table))
				index[part] = id
				table = append(table, part)
			}
			ids[j] = id
		}
		segmentsOf[i] = ids
	}

	if err := b.writeTrackedU64(uint64(len(table))); err != nil {
		return err
	}
	for _, s := range table {
		if err := b.writeString(s); err != nil {
			return err
		}
	}

	if err := b.writeTrackedU64(uint64(len(b.entries))); err != nil {
		return err
	}
	for i, e := range b.entries {
		ids := segmentsOf[i]
		if err := b.writeTrackedU32(uint32(len(ids))); err != nil {
			return err
		}
		for _, id := range ids {
			if err := b.writeTrackedU32(id); err != nil {
				return err
			}
		}
		if err := b.writePlacement(e); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) writePlacement(e entryRecord) error {
	var rec [16]byte
	binary.LittleEndian.PutUint64(rec[0:8], e.Offset)
	binary.LittleEndian.PutUint64(rec[8:16], e.Size)
	return b.writeTracked(rec[:])
}

func (b *Builder) writeString(s string) error {
	if err := b.writeTrackedU32(uint32(len(s))); err != nil {
		return err
	}
	return b.writeTracked([]byte(s))
}

func (b *Builder) writeTrackedU64(v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return b.writeTracked(buf[:])
}

func (b *Builder) writeTrackedU32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	return b.writeTracked(buf[:])
}

func (b *Builder) writeTracked(p []byte) error {
	n, err := b.w.Write(p)
	b.offset += uint64(n)
	if err != nil {
		return fmt.Errorf("pack: write registry: %w", err)
	}
	return nil
}

// Pack is a mounted, read-only pack file. Reads use the pre-measured
// range recorded in the registry; the registry itself is held in memory
// sorted by path for binary-search lookup.
type Pack struct {
	f       *os.File
	entries []entryRecord
}

// Open mounts a pack file read-only, reading its footer and registry.
func Open(path string) (*Pack, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("pack: open %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() < footerSize {
		f.Close()
		return nil, fmt.Errorf("pack: %q too small to contain a footer: %w", path, errs.ErrValidation)
	}

	footer := make([]byte, footerSize)
	if _, err := f.ReadAt(footer, info.Size()-footerSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("pack: read footer: %w", err)
	}
	registryOffset := binary.LittleEndian.Uint64(footer[0:8])
	registrySize := binary.LittleEndian.Uint64(footer[8:16])
	encoding := Encoding(binary.LittleEndian.Uint64(footer[16:24]))
	magic := binary.LittleEndian.Uint64(footer[24:32])
	if magic != Magic {
		f.Close()
		return nil, fmt.Errorf("pack: %q has bad magic: %w", path, errs.ErrValidation)
	}

	registryBuf := make([]byte, registrySize)
	if _, err := f.ReadAt(registryBuf, int64(registryOffset)); err != nil {
		f.Close()
		return nil, fmt.Errorf("pack: read registry: %w", err)
	}

	var entries []entryRecord
	if encoding == EncodingInterned {
		entries, err = decodeInternedRegistry(registryBuf)
	} else {
		entries, err = decodeRegularRegistry(registryBuf)
	}
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Pack{f: f, entries: entries}, nil
}

type registryReader struct {
	buf []byte
	pos int
}

func (r *registryReader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, fmt.Errorf("pack: truncated registry: %w", errs.ErrValidation)
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos : r.pos+8])
	r.pos += 8
	return v, nil
}

func (r *registryReader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, fmt.Errorf("pack: truncated registry: %w", errs.ErrValidation)
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *registryReader) str() (string, error) {
	n, err := r.u32()
	if err != nil {
		return "", err
	}
	if r.pos+int(n) > len(r.buf) {
		return "", fmt.Errorf("pack: truncated registry string: %w", errs.ErrValidation)
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s, nil
}

func (r *registryReader) placement() (offset, size uint64, err error) {
	offset, err = r.u64()
	if err != nil {
		return 0, 0, err
	}
	size, err = r.u64()
	if err != nil {
		return 0, 0, err
	}
	return offset, size, nil
}

func decodeRegularRegistry(buf []byte) ([]entryRecord, error) {
	r := &registryReader{buf: buf}
	count, err := r.u64()
	if err != nil {
		return nil, err
	}

	entries := make([]entryRecord, 0, count)
	for i := uint64(0); i < count; i++ {
		path, err := r.str()
		if err != nil {
			return nil, err
		}
		offset, size, err := r.placement()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entryRecord{Path: path, Offset: offset, Size: size})
	}
	return entries, nil
}

func decodeInternedRegistry(buf []byte) ([]entryRecord, error) {
	r := &registryReader{buf: buf}

	tableCount, err := r.u64()
	if err != nil {
		return nil, err
	}
	table := make([]string, 0, tableCount)
	for i := uint64(0); i < tableCount; i++ {
		s, err := r.str()
		if err != nil {
			return nil, err
		}
		table = append(table, s)
	}

	entryCount, err := r.u64()
	if err != nil {
		return nil, err
	}
	entries := make([]entryRecord, 0, entryCount)
	for i := uint64(0); i < entryCount; i++ {
		segCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		parts := make([]string, segCount)
		for j := uint32(0); j < segCount; j++ {
			id, err := r.u32()
			if err != nil {
				return nil, err
			}
			if int(id) >= len(table) {
				return nil, fmt.Errorf("pack: interned segment index out of range: %w", errs.ErrValidation)
			}
			parts[j] = table[id]
		}
		offset, size, err := r.placement()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entryRecord{Path: strings.Join(parts, "/"), Offset: offset, Size: size})
	}
	return entries, nil
}

// Close unmounts the pack.
func (p *Pack) Close() error { return p.f.Close() }

// Lookup bisects the registry for path, returning its recorded range.
func (p *Pack) Lookup(path string) (offset, size uint64, ok bool) {
	i := sort.Search(len(p.entries), func(i int) bool { return p.entries[i].Path >= path })
	if i < len(p.entries) && p.entries[i].Path == path {
		return p.entries[i].Offset, p.entries[i].Size, true
	}
	return 0, 0, false
}

// Read returns the payload bytes for path, using the pre-measured range
// from the registry — no scanning.
func (p *Pack) Read(path string) ([]byte, error) {
	offset, size, ok := p.Lookup(path)
	if !ok {
		return nil, fmt.Errorf("pack: %q: %w", path, errs.ErrNotFound)
	}
	buf := make([]byte, size)
	if _, err := p.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("pack: read %q: %w", path, err)
	}
	return buf, nil
}

// List returns every virtual path mounted in the pack, in registry
// (sorted) order.
func (p *Pack) List() []string {
	out := make([]string, len(p.entries))
	for i, e := range p.entries {
		out[i] = e.Path
	}
	return out
}
