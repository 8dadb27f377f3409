// Package similarity scores how closely a directory record resembles a
// supplied identity.
//
// All scores are integers in [0, 100]. Text is normalised before comparison:
// diacritics are stripped, case is folded, and any rune that is not a letter
// or digit separates tokens. Token-sort comparison makes scores insensitive to
// token order ("Smith John" and "John Smith" score 100).
//
// Specialty text is compared only up to its first comma or slash, because
// registries pack several sub-specialties into one description.
package similarity
