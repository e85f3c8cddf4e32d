// Package pfb reads the ParFlow binary grid format.
//
// A PFB file is one rectilinear 3-axis grid of float64 samples, stored
// big-endian, tiled into one or more subgrids. The global storage
// order is z, y, x with x varying fastest within a subgrid.
package pfb

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/batchatco/go-thrower"

	"github.com/hydroframe/go-parflow/internal"
	"github.com/hydroframe/go-parflow/parflow/api"
)

const (
	headerSize  = 64 // 3 float64 origin, 3 int32 count, 3 float64 spacing, 1 int32 nsubgrids
	subgridSize = 36 // 9 int32: ix,iy,iz, nx,ny,nz, rx,ry,rz
	sampleSize  = 8  // float64
)

var (
	ErrNotPFB         = errors.New("not a PFB file")
	ErrCorruptedFile  = errors.New("corrupted PFB file")
	ErrNotImplemented = errors.New("PFB write-back is not implemented")
	ErrInternal       = errors.New("internal error")
)

var (
	logger = internal.NewLogger()
)

type subgrid struct {
	ix, iy, iz int32
	nx, ny, nz int32
	rx, ry, rz int32
	offset     int64 // file offset of the subgrid's first sample
}

func (sg *subgrid) cells() int64 {
	return int64(sg.nx) * int64(sg.ny) * int64(sg.nz)
}

// PFB owns an open handle to one grid file. It is never reused across
// files: open a new one per file.
type PFB struct {
	fname        string
	file         api.ReadSeekerCloser
	fileRefCount int
	x, y, z      float64 // origin
	nx, ny, nz   int32   // counts
	dx, dy, dz   float64 // spacing
	subgrids     []subgrid
}

// SetLogLevel sets the logging level to the given level, and returns
// the old level. This is for internal debugging use. The lowest level
// is 0 (no error logs at all) and the highest level is 3 (errors,
// warnings and debug messages).
func SetLogLevel(level int) int {
	old := logger.LogLevel()
	switch level {
	case 0:
		logger.SetLogLevel(internal.LevelFatal)
	case 1:
		logger.SetLogLevel(internal.LevelError)
	case 2:
		logger.SetLogLevel(internal.LevelWarn)
	default:
		logger.SetLogLevel(internal.LevelInfo)
	}
	return int(old)
}

func fail(message string, err error) {
	logger.Error(message)
	thrower.Throw(err)
}

func assert(condition bool, message string, err error) {
	if condition {
		return
	}
	fail(message, err)
}

func readFloat64(r io.Reader) float64 {
	var data float64
	err := binary.Read(r, binary.BigEndian, &data)
	thrower.ThrowIfError(err)
	return data
}

func readInt32(r io.Reader) int32 {
	var data int32
	err := binary.Read(r, binary.BigEndian, &data)
	thrower.ThrowIfError(err)
	return data
}

func seekTo(f io.Seeker, offset int64) {
	_, err := f.Seek(offset, io.SeekStart)
	thrower.ThrowIfError(err)
}

// Open opens a PFB file by name and validates its header and subgrid
// table. A missing or unreadable path surfaces as the underlying
// *os.PathError.
func Open(fname string) (*PFB, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	p, err := New(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	p.fname = fname
	return p, nil
}

// New is like Open, but takes an opened file instead of a filename.
// If New returns no error, it has taken ownership of the file.
// Otherwise, it is up to the caller to close the file.
func New(file api.ReadSeekerCloser) (p *PFB, err error) {
	defer thrower.RecoverError(&err)
	ret := &PFB{file: file, fileRefCount: 1}
	ret.readHeader()
	if f, ok := file.(*os.File); ok {
		ret.fname = f.Name()
	}
	return ret, nil
}

// readHeader parses the main header and walks the subgrid table. It
// throws ErrNotPFB if the header is not plausible and ErrCorruptedFile
// if the header is plausible but the subgrid table or file size
// disagrees with it.
func (p *PFB) readHeader() {
	size, err := p.file.Seek(0, io.SeekEnd)
	thrower.ThrowIfError(err)
	if size < headerSize {
		fail(fmt.Sprint("file too small for a PFB header: ", size), ErrNotPFB)
	}
	seekTo(p.file, 0)
	bf := io.Reader(bufio.NewReader(p.file))

	p.x = readFloat64(bf)
	p.y = readFloat64(bf)
	p.z = readFloat64(bf)
	p.nx = readInt32(bf)
	p.ny = readInt32(bf)
	p.nz = readInt32(bf)
	p.dx = readFloat64(bf)
	p.dy = readFloat64(bf)
	p.dz = readFloat64(bf)
	nSubgrids := readInt32(bf)

	if p.nx <= 0 || p.ny <= 0 || p.nz <= 0 {
		fail(fmt.Sprintf("implausible counts nx=%d ny=%d nz=%d", p.nx, p.ny, p.nz),
			ErrNotPFB)
	}
	// Bound the cell count by what the file could possibly hold before
	// multiplying it out, so garbage counts can't overflow int64.
	avail := (size - headerSize) / sampleSize
	totalCells := int64(p.nx) * int64(p.ny)
	if totalCells > avail || int64(p.nz) > avail/totalCells {
		fail(fmt.Sprintf("counts nx=%d ny=%d nz=%d exceed file size %d",
			p.nx, p.ny, p.nz, size), ErrNotPFB)
	}
	totalCells *= int64(p.nz)
	if nSubgrids <= 0 || int64(nSubgrids) > totalCells {
		fail(fmt.Sprint("implausible subgrid count: ", nSubgrids), ErrNotPFB)
	}
	// The minimum possible size for this header rules out most
	// non-PFB inputs before the subgrid walk.
	if size < headerSize+int64(nSubgrids)*subgridSize+totalCells*sampleSize {
		fail(fmt.Sprintf("file size %d too small for %d cells in %d subgrids",
			size, totalCells, nSubgrids), ErrNotPFB)
	}

	p.subgrids = make([]subgrid, nSubgrids)
	offset := int64(headerSize)
	cellSum := int64(0)
	for i := range p.subgrids {
		seekTo(p.file, offset)
		sg := p.getSubgrid()
		sg.offset = offset + subgridSize
		assert(sg.nx > 0 && sg.ny > 0 && sg.nz > 0,
			fmt.Sprint("subgrid ", i, " has non-positive extent"),
			ErrCorruptedFile)
		assert(sg.ix >= 0 && sg.iy >= 0 && sg.iz >= 0 &&
			sg.ix+sg.nx <= p.nx && sg.iy+sg.ny <= p.ny && sg.iz+sg.nz <= p.nz,
			fmt.Sprint("subgrid ", i, " outside the grid box"),
			ErrCorruptedFile)
		cellSum += sg.cells()
		offset = sg.offset + sg.cells()*sampleSize
		assert(offset <= size,
			fmt.Sprint("subgrid ", i, " extends past end of file"),
			ErrCorruptedFile)
		p.subgrids[i] = sg
	}
	assert(cellSum == totalCells,
		fmt.Sprintf("subgrid cells %d don't cover the %d cell grid", cellSum, totalCells),
		ErrCorruptedFile)
	assert(offset == size,
		fmt.Sprintf("trailing bytes: subgrids end at %d, file size %d", offset, size),
		ErrCorruptedFile)
}

func (p *PFB) getSubgrid() subgrid {
	bf := io.Reader(bufio.NewReader(p.file))
	var sg subgrid
	sg.ix = readInt32(bf)
	sg.iy = readInt32(bf)
	sg.iz = readInt32(bf)
	sg.nx = readInt32(bf)
	sg.ny = readInt32(bf)
	sg.nz = readInt32(bf)
	sg.rx = readInt32(bf)
	sg.ry = readInt32(bf)
	sg.rz = readInt32(bf)
	return sg
}

// Filename returns the name of the backing file, if known.
func (p *PFB) Filename() string {
	return p.fname
}

// Origin accessors.
func (p *PFB) X() float64 { return p.x }
func (p *PFB) Y() float64 { return p.y }
func (p *PFB) Z() float64 { return p.z }

// Count accessors.
func (p *PFB) NX() int { return int(p.nx) }
func (p *PFB) NY() int { return int(p.ny) }
func (p *PFB) NZ() int { return int(p.nz) }

// Spacing accessors.
func (p *PFB) DX() float64 { return p.dx }
func (p *PFB) DY() float64 { return p.dy }
func (p *PFB) DZ() float64 { return p.dz }

// NumSubgrids returns the number of subgrids tiling the grid.
func (p *PFB) NumSubgrids() int {
	return len(p.subgrids)
}

// IndexOrder returns the dimension names in the file's storage order,
// slowest axis first.
func (p *PFB) IndexOrder() []string {
	return []string{"z", "y", "x"}
}

// Shape returns the dimension lengths in storage order (nz, ny, nx).
func (p *PFB) Shape() []int64 {
	return []int64{int64(p.nz), int64(p.ny), int64(p.nx)}
}

// ReadAll reads the complete grid as a flat buffer in storage order,
// assembling across subgrids. Nothing is cached: every call re-reads
// the file.
func (p *PFB) ReadAll() (data []float64, err error) {
	defer thrower.RecoverError(&err)
	assert(p.file != nil, "read after close", ErrInternal)
	nx, ny := int64(p.nx), int64(p.ny)
	dst := make([]float64, int64(p.nz)*ny*nx)
	for i := range p.subgrids {
		sg := &p.subgrids[i]
		seekTo(p.file, sg.offset)
		bf := io.Reader(bufio.NewReader(p.file))
		if p.whole(sg) {
			rerr := binary.Read(bf, binary.BigEndian, dst)
			thrower.ThrowIfError(rerr)
			return dst, nil
		}
		buf := make([]float64, sg.cells())
		rerr := binary.Read(bf, binary.BigEndian, buf)
		thrower.ThrowIfError(rerr)
		snx, sny, snz := int64(sg.nx), int64(sg.ny), int64(sg.nz)
		for z := int64(0); z < snz; z++ {
			for y := int64(0); y < sny; y++ {
				srow := buf[(z*sny+y)*snx : (z*sny+y+1)*snx]
				doff := ((int64(sg.iz)+z)*ny+int64(sg.iy)+y)*nx + int64(sg.ix)
				copy(dst[doff:doff+snx], srow)
			}
		}
	}
	return dst, nil
}

// whole reports whether the subgrid covers the entire grid.
func (p *PFB) whole(sg *subgrid) bool {
	return len(p.subgrids) == 1 &&
		sg.ix == 0 && sg.iy == 0 && sg.iz == 0 &&
		sg.nx == p.nx && sg.ny == p.ny && sg.nz == p.nz
}

// Close closes the underlying file once no other holders remain.
func (p *PFB) Close() {
	defer thrower.RecoverError(nil)
	assert(p.fileRefCount > 0, "ref count off", ErrInternal)
	p.fileRefCount--
	if p.fileRefCount == 0 {
		err := p.file.Close()
		if err != nil {
			logger.Error("Error on close (ignored):", err)
		}
		p.file = nil
	}
}
