package stream

import (
	"bufio"
	"errors"
	"io"
)

const minReadBuffer = 64 * 1024

// recordReader splits a stream on a delimiter, keeping at most max bytes
// of each record. Bytes past max are read and dropped.
type recordReader struct {
	br        *bufio.Reader
	delim     byte
	max       int
	buf       []byte // current record, at most max bytes
	length    int    // full length of the current record
	truncated bool
}

func newRecordReader(r io.Reader, delim byte, max int) *recordReader {
	size := minReadBuffer
	if max+1 > size {
		size = max + 1
	}
	return &recordReader{
		br:    bufio.NewReaderSize(r, size),
		delim: delim,
		max:   max,
		buf:   make([]byte, 0, max),
	}
}

// next advances to the next record. It returns false at end of input.
// A final record without a trailing delimiter is still returned.
func (rr *recordReader) next() (bool, error) {
	rr.buf = rr.buf[:0]
	rr.length = 0
	rr.truncated = false

	for {
		chunk, err := rr.br.ReadSlice(rr.delim)
		if err == nil {
			chunk = chunk[:len(chunk)-1]
		}
		rr.append(chunk)

		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			return rr.length > 0, nil
		default:
			return false, err
		}
	}
}

func (rr *recordReader) append(chunk []byte) {
	rr.length += len(chunk)
	if room := rr.max - len(rr.buf); room > 0 {
		if len(chunk) > room {
			chunk = chunk[:room]
		}
		rr.buf = append(rr.buf, chunk...)
	}
	rr.truncated = rr.length > rr.max
}
