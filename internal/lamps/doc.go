// Package lamps validates a calculation request against the engine and the
// catalog and builds the per-lamp power and efficiency arrays.
//
// A lamp setting is sparse: all_lamps replaces every element, then
// specific_lamps overrides single lamps by 1-based index. A bad index fails
// the whole build.
package lamps
