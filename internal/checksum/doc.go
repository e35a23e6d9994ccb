// Package checksum fingerprints data source files for the ingest journal.
//
// The checksum is taken over the file exactly as stored, so a compressed
// source and its decompressed form have different fingerprints.
//
//	calc := checksum.New()
//	sum := calc.CalculateRaw(content)
//
// SHA256 is safe for concurrent use by multiple goroutines.
package checksum
