package segment

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Writer serialises builds into new segment files.
type Writer struct {
	dataDir string
}

// NewWriter creates a Writer that writes segments into the given directory.
func NewWriter(dataDir string) *Writer {
	return &Writer{dataDir: dataDir}
}

// Write creates a new segment file containing data and returns its name. It
// writes to a .tmp file, syncs, and renames on success, so a segment file
// either exists complete or not at all.
func (w *Writer) Write(data Data) (string, error) {
	segmentName := fmt.Sprintf("seg_%d_%s%s", time.Now().UnixNano(), uuid.NewString()[:8], FileExt)
	finalPath := filepath.Join(w.dataDir, segmentName)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0755); err != nil {
		return "", fmt.Errorf("creating segment directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp segment file: %w", err)
	}
	committed := false
	defer func() {
		f.Close()
		if !committed {
			os.Remove(tmpPath)
		}
	}()

	header := SegmentHeader{
		Magic:     MagicBytes,
		Version:   FormatVersion,
		TermCount: uint32(len(data.Entries)),
		DocCount:  uint32(len(data.Stored.Docs)),
		CreatedAt: time.Now().Unix(),
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err := bw.Write(make([]byte, HeaderSize)); err != nil {
		return "", fmt.Errorf("writing header: %w", err)
	}

	offset := int64(HeaderSize)
	header.PostOffset = offset
	dict := make([]DictEntry, 0, len(data.Entries))
	for _, entry := range data.Entries {
		postingsData, err := json.Marshal(entry.Postings)
		if err != nil {
			return "", fmt.Errorf("marshaling postings for term %q: %w", entry.Term, err)
		}
		if _, err := bw.Write(postingsData); err != nil {
			return "", fmt.Errorf("writing postings for term %q: %w", entry.Term, err)
		}
		dict = append(dict, DictEntry{
			Field:      entry.Field,
			Term:       entry.Term,
			PostOffset: offset - header.PostOffset,
			PostLen:    len(postingsData),
			DocFreq:    len(entry.Postings),
		})
		offset += int64(len(postingsData))
	}
	header.PostSize = offset - header.PostOffset

	dictData, err := json.Marshal(dict)
	if err != nil {
		return "", fmt.Errorf("marshaling dictionary: %w", err)
	}
	if _, err := bw.Write(dictData); err != nil {
		return "", fmt.Errorf("writing dictionary: %w", err)
	}
	header.DictOffset = offset
	header.DictSize = int64(len(dictData))
	offset += header.DictSize

	storedData, err := json.Marshal(data.Stored)
	if err != nil {
		return "", fmt.Errorf("marshaling stored fields: %w", err)
	}
	if _, err := bw.Write(storedData); err != nil {
		return "", fmt.Errorf("writing stored fields: %w", err)
	}
	footer := SegmentFooter{
		DictChecksum:   crc32.ChecksumIEEE(dictData),
		StoredChecksum: crc32.ChecksumIEEE(storedData),
		StoredOffset:   offset,
		StoredSize:     int64(len(storedData)),
		Magic:          MagicBytes,
	}
	if _, err := bw.Write(encodeFooter(footer)); err != nil {
		return "", fmt.Errorf("writing footer: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return "", fmt.Errorf("flushing segment file: %w", err)
	}
	if _, err := f.WriteAt(encodeHeader(header), 0); err != nil {
		return "", fmt.Errorf("updating header: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing segment file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing segment file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming segment file: %w", err)
	}
	committed = true
	return segmentName, nil
}

func encodeHeader(h SegmentHeader) []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(buf[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(buf[16:24], uint64(h.CreatedAt))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(h.DictOffset))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(h.DictSize))
	binary.LittleEndian.PutUint64(buf[40:48], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(buf[48:56], uint64(h.PostSize))
	return buf
}

func decodeHeader(buf []byte) SegmentHeader {
	return SegmentHeader{
		Magic:      binary.LittleEndian.Uint32(buf[0:4]),
		Version:    binary.LittleEndian.Uint32(buf[4:8]),
		TermCount:  binary.LittleEndian.Uint32(buf[8:12]),
		DocCount:   binary.LittleEndian.Uint32(buf[12:16]),
		CreatedAt:  int64(binary.LittleEndian.Uint64(buf[16:24])),
		DictOffset: int64(binary.LittleEndian.Uint64(buf[24:32])),
		DictSize:   int64(binary.LittleEndian.Uint64(buf[32:40])),
		PostOffset: int64(binary.LittleEndian.Uint64(buf[40:48])),
		PostSize:   int64(binary.LittleEndian.Uint64(buf[48:56])),
	}
}

func encodeFooter(f SegmentFooter) []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf[0:4], f.DictChecksum)
	binary.LittleEndian.PutUint32(buf[4:8], f.StoredChecksum)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(f.StoredOffset))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(f.StoredSize))
	binary.LittleEndian.PutUint32(buf[24:28], f.Magic)
	return buf
}

func decodeFooter(buf []byte) SegmentFooter {
	return SegmentFooter{
		DictChecksum:   binary.LittleEndian.Uint32(buf[0:4]),
		StoredChecksum: binary.LittleEndian.Uint32(buf[4:8]),
		StoredOffset:   int64(binary.LittleEndian.Uint64(buf[8:16])),
		StoredSize:     int64(binary.LittleEndian.Uint64(buf[16:24])),
		Magic:          binary.LittleEndian.Uint32(buf[24:28]),
	}
}
