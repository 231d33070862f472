// Package colorize turns plain text into chat markup where every character is
// wrapped in a colored span. Consecutive characters of the same color share a
// span, so the output stays compact.
package colorize
