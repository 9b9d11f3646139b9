package serialization

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/born-ml/remat/internal/tensor"
)

// File is a parsed .born file whose checksum has been verified.
type File struct {
	header Header
	flags  uint32
	data   []byte
}

// Read parses a .born file from r and verifies its checksum.
func Read(r io.Reader) (*File, error) {
	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("failed to read fixed header: %w", err)
	}
	if !bytes.Equal(fixed[0:4], []byte(MagicBytes)) {
		return nil, ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(fixed[4:8]); version != FormatVersion {
		return nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}
	f := &File{flags: binary.LittleEndian.Uint32(fixed[8:12])}
	headerSize := binary.LittleEndian.Uint64(fixed[headerSizeOffset : headerSizeOffset+8])
	dataSize := binary.LittleEndian.Uint64(fixed[dataSizeOffset : dataSizeOffset+8])
	if headerSize > MaxHeaderSize {
		return nil, ErrHeaderTooLarge
	}
	var stored [32]byte
	copy(stored[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerJSON, &f.header); err != nil {
		return nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	if _, err := io.CopyN(io.Discard, r, padding(int64(FixedHeaderSize)+int64(headerSize))); err != nil {
		return nil, fmt.Errorf("failed to skip padding: %w", err)
	}

	f.data = make([]byte, dataSize)
	if _, err := io.ReadFull(r, f.data); err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateChecksum(ComputeChecksum(f.data), stored); err != nil {
		return nil, err
	}
	if err := ValidateHeader(&f.header, int64(len(f.data))); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return f, nil
}

// OpenFile reads and verifies the .born file at path.
func OpenFile(path string) (*File, error) {
	//nolint:gosec // G304: path comes from the caller by design of the API
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()
	return Read(file)
}

// Header returns the parsed header.
func (f *File) Header() Header {
	return f.header
}

// HasTrainingState reports whether the file carries a training state.
func (f *File) HasTrainingState() bool {
	return f.flags&FlagHasTrainingState != 0
}

// TensorNames returns the tensor names in file order.
func (f *File) TensorNames() []string {
	names := make([]string, len(f.header.Tensors))
	for i, meta := range f.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// LoadTensor materializes one tensor on device.
func (f *File) LoadTensor(name string, device tensor.Device) (*tensor.RawTensor, error) {
	for _, meta := range f.header.Tensors {
		if meta.Name != name {
			continue
		}
		dtype, _ := stringToDtype(meta.DType)
		raw, err := tensor.NewRaw(tensor.Shape(meta.Shape), dtype, device)
		if err != nil {
			return nil, fmt.Errorf("invalid shape for tensor %s: %w", name, err)
		}
		if int64(raw.ByteSize()) != meta.Size {
			return nil, &ValidationError{
				Kind:    "size_mismatch",
				Name:    name,
				Details: fmt.Sprintf("shape %v needs %d bytes, header says %d", meta.Shape, raw.ByteSize(), meta.Size),
			}
		}
		copy(raw.Data(), f.data[meta.Offset:meta.Offset+meta.Size])
		return raw, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
}

// StateDict materializes every tensor on device.
func (f *File) StateDict(device tensor.Device) (map[string]*tensor.RawTensor, error) {
	state := make(map[string]*tensor.RawTensor, len(f.header.Tensors))
	for _, meta := range f.header.Tensors {
		raw, err := f.LoadTensor(meta.Name, device)
		if err != nil {
			return nil, err
		}
		state[meta.Name] = raw
	}
	return state, nil
}
