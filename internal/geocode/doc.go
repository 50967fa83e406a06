// Package geocode provides the DIGIPIN coordinate encoder and decoder.
//
// DIGIPIN divides the bounding box covering India (latitude 2.5 to 38.5,
// longitude 63.5 to 99.5) into a 4x4 grid and repeats the subdivision ten
// times. Each level contributes one symbol from a fixed 16-character table, so
// a code identifies a cell of roughly 4m x 4m. Codes are rendered as
// XXX-XXX-XXXX; the hyphens carry no information and are ignored on decode.
//
// Callers depend on the Provider interface rather than on this package's
// grid, so the workflow can treat the algorithm as an opaque collaborator.
package geocode
