// Package utils holds conversions for loosely typed values such as decoded
// JSON configuration documents.
package utils
