// Package matrix provides DenseMatrix, the datum that flows between the
// built-in math modules. A matrix is immutable: every operation returns a
// new value, so a published matrix can be shared by any number of
// downstream readers.
package matrix
