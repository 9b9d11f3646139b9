// Package serialization saves and loads parameter state dicts in the .born
// format.
//
//	Format structure:
//	  [64 bytes: fixed header]
//	    0x00 magic "BORN"
//	    0x04 version (uint32 LE)
//	    0x08 flags (uint32 LE)
//	    0x10 header size (uint64 LE)
//	    0x18 data size (uint64 LE)
//	    0x20 SHA-256 of the data section
//	  [header: JSON metadata]
//	  [padding to 64 bytes]
//	  [tensor data: raw bytes in header order]
//
// Tensors are written in name order, so saving the same state twice yields
// the same data section and checksum.
package serialization
