// Package checksum computes SHA-256 checksums of generated metadata files
// and the content-addressed hash of a working-copy diff.
//
// The diff hash is what the publish workflow shows to the user together
// with the diff and what it requires back on commit: if the working copy
// changes in between, the hash no longer matches and the commit is refused.
package checksum
