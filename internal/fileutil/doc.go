// Package fileutil provides filesystem helpers for materializing and
// cleaning up instance working directories.
package fileutil
