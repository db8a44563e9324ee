// Package utils contains small loosely-typed conversion helpers used when
// normalizing EXIF tag values into the manifest schema.
package utils
