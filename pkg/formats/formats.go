// Package formats defines the binary and JSON files geobake produces: the
// ITRI triangle soup, the spatial grid, instance tiles and the tile manifest.
//
// Every binary integer and float is little-endian. Writers stage output in a
// temporary file and rename it into place, so a failed export never leaves a
// partial file behind.
package formats
