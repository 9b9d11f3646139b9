package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/born-ml/remat/internal/tensor"
)

// Version is stamped into every header this package writes.
const Version = "0.1.0"

// WriteStateDict writes stateDict in .born format to w.
//
// Version, FormatVersion, CreatedAt, and Tensors in header are filled in;
// the caller sets ModelType, Metadata, and Training.
func WriteStateDict(w io.Writer, stateDict map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(stateDict))
	for name := range stateDict {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersion
	header.Version = Version
	header.CreatedAt = time.Now().UTC()
	header.Tensors = make([]TensorMeta, 0, len(names))
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	var data []byte
	for _, name := range names {
		raw := stateDict[name]
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  dtypeToString(raw.DType()),
			Shape:  []int(raw.Shape().Clone()),
			Offset: int64(len(data)),
			Size:   int64(raw.ByteSize()),
		})
		data = append(data, raw.Data()[:raw.ByteSize()]...)
	}
	checksum := ComputeChecksum(data)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Training != nil {
		flags |= FlagHasTrainingState
	}
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	binary.LittleEndian.PutUint64(fixed[headerSizeOffset:headerSizeOffset+8], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[dataSizeOffset:dataSizeOffset+8], uint64(len(data)))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	pad := make([]byte, padding(int64(FixedHeaderSize+len(headerJSON))))
	for _, chunk := range [][]byte{fixed, headerJSON, pad, data} {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("failed to write .born file: %w", err)
		}
	}
	return nil
}

// SaveFile writes stateDict to path, replacing any existing file.
func SaveFile(path string, stateDict map[string]*tensor.RawTensor, header Header) (err error) {
	//nolint:gosec // G304: path comes from the caller by design of the API
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close file: %w", cerr)
		}
	}()
	return WriteStateDict(file, stateDict, header)
}
