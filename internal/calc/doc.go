// Package calc is the calculation surface consumed by the REST server and
// the CLI. Calculator validates a request, builds the lamp arrays, calls the
// native engine and returns a types.Outcome; request-level problems are
// never errors or panics.
//
// Failure kinds:
//
//	system       unknown system, no specification, no lamp count, no RED
//	             function, or a fault recovered during the native call
//	validation   flow/uvt outside the operating limits, bad lamp index,
//	             non-positive pressure-drop flow
//	calculation  the engine returned a non-positive value
package calc
