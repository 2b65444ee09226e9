// Package sourcemap maps locations in a generated JavaScript bundle back to
// the original source files it was built from.
//
// A Resolver finds and decodes the v3 source map a bundle references. The
// decoded Payload feeds a Mapper, which answers generated-to-original queries
// with a bounded binary search and clamps results to each source's best-known
// end of file, since source maps rarely encode where a file really ends.
//
// Lines are 1-based and columns are 0-based UTF-16 code unit offsets, the
// units Chrome and source maps both use.
package sourcemap
