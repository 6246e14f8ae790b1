// Package highlight renders Fortran source lines as HTML with syntax
// highlighting, using chroma lexers and styles.
//
// Lines are highlighted as a whole file so that multi-line constructs are
// tokenised correctly, and then split back into one HTML fragment per line.
// Fragments use CSS classes; the matching style sheet comes from CSS.
package highlight
