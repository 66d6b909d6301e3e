package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrMalformedRange     = errors.New("malformed range header")
	ErrUnsatisfiableRange = errors.New("range not satisfiable")
)

// ByteRange is an inclusive byte span within a file.
type ByteRange struct {
	Start int64
	End   int64
}

func (br ByteRange) Length() int64 {
	return br.End - br.Start + 1
}

func (br ByteRange) ContentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", br.Start, br.End, size)
}

// ParseByteRange reads a Range request header against a file of the
// given size. An empty header yields (nil, nil): send the whole file.
// Multi-part ranges are not supported; only the first span is honored.
func ParseByteRange(header string, size int64) (*ByteRange, error) {
	if header == "" {
		return nil, nil
	}

	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrMalformedRange
	}
	if first, _, found := strings.Cut(spec, ","); found {
		spec = strings.TrimSpace(first)
	}

	startPart, endPart, ok := strings.Cut(spec, "-")
	if !ok {
		return nil, ErrMalformedRange
	}

	if startPart == "" {
		return suffixRange(endPart, size)
	}
	return boundedRange(startPart, endPart, size)
}

// suffixRange handles "bytes=-N", the final N bytes of the file.
func suffixRange(lenPart string, size int64) (*ByteRange, error) {
	n, err := strconv.ParseInt(lenPart, 10, 64)
	if err != nil || n <= 0 {
		return nil, ErrMalformedRange
	}

	start := size - n
	if start < 0 {
		start = 0
	}
	if start >= size {
		return nil, ErrUnsatisfiableRange
	}
	return &ByteRange{Start: start, End: size - 1}, nil
}

func boundedRange(startPart, endPart string, size int64) (*ByteRange, error) {
	start, err := strconv.ParseInt(startPart, 10, 64)
	if err != nil || start < 0 {
		return nil, ErrMalformedRange
	}

	end := size - 1
	if endPart != "" {
		end, err = strconv.ParseInt(endPart, 10, 64)
		if err != nil {
			return nil, ErrMalformedRange
		}
	}

	if start > end || start >= size {
		return nil, ErrUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}
	return &ByteRange{Start: start, End: end}, nil
}
