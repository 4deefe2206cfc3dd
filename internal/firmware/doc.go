// Package firmware loads and validates firmware images and precomputes
// the transfer arithmetic for both update protocols: 1024-byte chunk
// counts for the router and the header/length/continuation/final block
// plan for sensor modules, including CRC32 handling for images that
// already carry an embedded checksum.
package firmware
