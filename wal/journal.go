package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Journal is a durable, append-only, checksummed log of committed mutation
// batches. Each call to Append writes exactly one framed record:
//
//	uint32 payloadLen | uint64 xxhash64(payload) | payload (msgpack []entryWire)
//
// A torn write at the tail (the last partial record after a crash) is
// detected and ignored by Open/entriesSince; everything before it is trusted,
// mirroring the teacher's segment-checksum recovery story without the
// segment-rotation machinery this edge-device workload doesn't need.
type Journal struct {
	mu      sync.Mutex
	path    string
	file    *os.File
	nextSeq uint64
}

const recordHeaderLen = 4 + 8 // uint32 length + uint64 checksum

// Open opens or creates the journal file at path, scanning it once to
// recover the next sequence number and to truncate any torn trailing
// record left by a crash mid-write.
func Open(path string) (*Journal, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open journal: %w", err)
	}
	validLen, lastSeq, err := scanValidPrefix(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.Truncate(validLen); err != nil {
		f.Close()
		return nil, fmt.Errorf("wal: truncate torn tail: %w", err)
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		f.Close()
		return nil, err
	}
	return &Journal{path: path, file: f, nextSeq: lastSeq + 1}, nil
}

func scanValidPrefix(f *os.File) (validLen int64, lastSeq uint64, err error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, 0, err
	}
	r := bufio.NewReader(f)
	var offset int64
	for {
		header := make([]byte, recordHeaderLen)
		n, err := io.ReadFull(r, header)
		if err == io.EOF {
			break
		}
		if err != nil || n < recordHeaderLen {
			break // torn header at end of file
		}
		payloadLen := binary.BigEndian.Uint32(header[:4])
		wantSum := binary.BigEndian.Uint64(header[4:])
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			break // torn payload at end of file
		}
		if xxhash.Sum64(payload) != wantSum {
			break // corrupted record; stop trusting the file here
		}
		entries, err := decodeBatch(payload)
		if err != nil {
			break
		}
		if len(entries) > 0 {
			lastSeq = entries[len(entries)-1].Seq
		}
		offset += recordHeaderLen + int64(payloadLen)
	}
	return offset, lastSeq, nil
}

// Append assigns sequence numbers to entries (overwriting any Seq already
// set) and durably writes them as a single framed record. It returns the
// sequence number assigned to the last entry.
func (j *Journal) Append(entries []Entry) (uint64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	for i := range entries {
		entries[i].Seq = j.nextSeq
		j.nextSeq++
	}
	payload, err := encodeBatch(entries)
	if err != nil {
		return 0, fmt.Errorf("wal: encode batch: %w", err)
	}
	header := make([]byte, recordHeaderLen)
	binary.BigEndian.PutUint32(header[:4], uint32(len(payload)))
	binary.BigEndian.PutUint64(header[4:], xxhash.Sum64(payload))
	if _, err := j.file.Write(append(header, payload...)); err != nil {
		return 0, fmt.Errorf("wal: write record: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return 0, fmt.Errorf("wal: sync: %w", err)
	}
	return entries[len(entries)-1].Seq, nil
}

// Close releases the underlying file handle.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}

// entriesSince reads every committed entry with Seq > after, in order, by
// reopening the journal file for independent read-only scanning (so a
// concurrent Tailer never contends with Append's file offset).
func entriesSince(path string, after uint64) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: open for tail: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var out []Entry
	for {
		header := make([]byte, recordHeaderLen)
		if _, err := io.ReadFull(r, header); err != nil {
			break
		}
		payloadLen := binary.BigEndian.Uint32(header[:4])
		wantSum := binary.BigEndian.Uint64(header[4:])
		payload := make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			break
		}
		if xxhash.Sum64(payload) != wantSum {
			break
		}
		entries, err := decodeBatch(payload)
		if err != nil {
			break
		}
		for _, e := range entries {
			if e.Seq > after {
				out = append(out, e)
			}
		}
	}
	return out, nil
}
